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

// Package config initializes the process-wide configuration: viper defaults,
// environment variable bindings, the optional YAML config file, and logging.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/units"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/samdjk118/CloudStream-Studio/param"
)

// InitConfig registers configuration defaults and wires up environment
// variable overrides (prefix CLOUDSTREAM, dots replaced by underscores).
// If cfgFile is non-empty it must point at a YAML config file; otherwise
// $HOME/.config/cloudstream/cloudstream.yaml is read when present.
func InitConfig(cfgFile string) error {
	viper.SetDefault(param.Logging_Level.GetName(), "info")

	viper.SetDefault(param.Server_Address.GetName(), "0.0.0.0")
	viper.SetDefault(param.Server_Port.GetName(), 8444)

	viper.SetDefault(param.Remote_Timeout.GetName(), 30*time.Second)

	viper.SetDefault(param.MetadataCache_Capacity.GetName(), 1000)

	viper.SetDefault(param.ChunkCache_DataLocation.GetName(), filepath.Join(os.TempDir(), "cloudstream-chunks"))
	viper.SetDefault(param.ChunkCache_Size.GetName(), "1GB")
	viper.SetDefault(param.ChunkCache_LowWaterMarkPercentage.GetName(), 80)

	viper.SetDefault(param.Stream_MaxUnboundedRangeSize.GetName(), "20MiB")
	viper.SetDefault(param.Stream_MaxRangeChunkSize.GetName(), "10MiB")
	viper.SetDefault(param.Stream_FullBufferThreshold.GetName(), "50MiB")
	viper.SetDefault(param.Stream_ChunkSize.GetName(), "2MiB")

	viper.SetEnvPrefix("cloudstream")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config file %s", cfgFile)
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "cloudstream"))
		}
		viper.AddConfigPath("/etc/cloudstream")
		viper.SetConfigName("cloudstream")
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			// A missing config file is fine; defaults and env cover everything.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return errors.Wrap(err, "failed to read config file")
			}
		}
	}

	return InitLogging()
}

// InitLogging configures logrus from the Logging.Level parameter.
func InitLogging() error {
	levelStr := param.Logging_Level.GetString()
	level, err := log.ParseLevel(levelStr)
	if err != nil {
		return errors.Wrapf(err, "unknown log level %q", levelStr)
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
	return nil
}

// ParseBytes resolves a size parameter (e.g. "10MiB", "1GB") into a byte
// count, falling back to the supplied default when the parameter is unset
// or malformed.
func ParseBytes(p param.StringParam, fallback int64) int64 {
	sizeStr := p.GetString()
	if sizeStr == "" {
		return fallback
	}
	size, err := units.ParseStrictBytes(sizeStr)
	if err != nil {
		log.Warningf("Invalid byte size %q for parameter %s; using default %d", sizeStr, p.GetName(), fallback)
		return fallback
	}
	return size
}
