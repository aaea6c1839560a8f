/***************************************************************
 *
 * Copyright (C) 2025, CloudStream Studio Project
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

// Package param provides typed accessors for the viper-backed configuration.
//
// Every recognized configuration key is declared here exactly once; callers
// use the typed accessor (e.g. param.ChunkCache_DataLocation.GetString())
// instead of spelling raw viper key strings throughout the codebase.
package param

import (
	"time"

	"github.com/spf13/viper"
)

type StringParam struct {
	name string
}

type IntParam struct {
	name string
}

type BoolParam struct {
	name string
}

type DurationParam struct {
	name string
}

func (sP StringParam) GetString() string {
	return viper.GetString(sP.name)
}

func (sP StringParam) GetName() string {
	return sP.name
}

func (sP StringParam) IsSet() bool {
	return viper.IsSet(sP.name)
}

func (iP IntParam) GetInt() int {
	return viper.GetInt(iP.name)
}

func (iP IntParam) GetName() string {
	return iP.name
}

func (iP IntParam) IsSet() bool {
	return viper.IsSet(iP.name)
}

func (bP BoolParam) GetBool() bool {
	return viper.GetBool(bP.name)
}

func (bP BoolParam) GetName() string {
	return bP.name
}

func (dP DurationParam) GetDuration() time.Duration {
	return viper.GetDuration(dP.name)
}

func (dP DurationParam) GetName() string {
	return dP.name
}

var (
	Logging_Level = StringParam{"Logging.Level"}

	Server_Address = StringParam{"Server.Address"}
	Server_Port    = IntParam{"Server.Port"}

	Remote_Url           = StringParam{"Remote.Url"}
	Remote_Bucket        = StringParam{"Remote.Bucket"}
	Remote_TokenLocation = StringParam{"Remote.TokenLocation"}
	Remote_Timeout       = DurationParam{"Remote.Timeout"}

	MetadataCache_Capacity = IntParam{"MetadataCache.Capacity"}

	ChunkCache_DataLocation           = StringParam{"ChunkCache.DataLocation"}
	ChunkCache_Size                   = StringParam{"ChunkCache.Size"}
	ChunkCache_LowWaterMarkPercentage = IntParam{"ChunkCache.LowWaterMarkPercentage"}

	Stream_MaxUnboundedRangeSize = StringParam{"Stream.MaxUnboundedRangeSize"}
	Stream_MaxRangeChunkSize     = StringParam{"Stream.MaxRangeChunkSize"}
	Stream_FullBufferThreshold   = StringParam{"Stream.FullBufferThreshold"}
	Stream_ChunkSize             = StringParam{"Stream.ChunkSize"}
)
