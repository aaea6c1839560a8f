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

package main

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/samdjk118/CloudStream-Studio/config"
)

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "cloudstream",
		Short: "Serve range-addressable media from a remote object store",
		Long: `The cloudstream server sits between HTTP clients and a remote
object store, caching object metadata and byte-range chunks locally so
repeated range requests are served from disk instead of the remote.`,
	}
)

func Execute() error {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		log.Errorln("Fatal error occurred at the start of the command:", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(func() {
		if err := config.InitConfig(cfgFile); err != nil {
			log.Fatalln("Failed to initialize configuration:", err)
		}
	})
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/cloudstream/cloudstream.yaml)")

	rootCmd.AddCommand(serveCmd)
}
