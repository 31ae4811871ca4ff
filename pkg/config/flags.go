/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package config

import (
	"time"

	"github.com/spf13/pflag"
)

const (
	DefaultMaxCachedItems     = 512
	DefaultReadAheadChunkSize = 25
)

func GetAppFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("app parameters", pflag.ExitOnError)

	flags.StringVar(&globalConf.App.MasterAppID, "app.masterappid", "", "master application id registered with the platform")
	flags.StringVar(&globalConf.App.Name, "app.name", "", "application display name")
	flags.StringVar(&globalConf.App.InstanceName, "app.instancename", "", "name of this app instance")
	flags.StringVar(&globalConf.App.Country, "app.country", "US", "ISO country code sent with requests")
	flags.StringVar(&globalConf.App.Language, "app.language", "en", "ISO language code sent with requests")

	return flags
}

func GetServiceFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("service parameters", pflag.ExitOnError)

	flags.StringVar(&globalConf.Service.Environment, "service.environment", EnvironmentUSPPE, "platform environment preset (us-production|us-ppe|uk-production|uk-ppe)")
	flags.StringVar(&globalConf.Service.ServiceURL, "service.serviceurl", "", "platform endpoint url, overrides the environment preset")
	flags.StringVar(&globalConf.Service.ShellURL, "service.shellurl", "", "shell endpoint url, overrides the environment preset")
	flags.DurationVar(&globalConf.Service.WriteTimeout, "service.writetimeout", time.Second*10, "HTTP write timeout")

	flags.DurationVar(&globalConf.Service.RetryOptions.Delay, "service.retry.delay", time.Millisecond*250, "Delay between retries")
	flags.DurationVar(&globalConf.Service.RetryOptions.MaxJitter, "service.retry.maxjitter", time.Millisecond*100, "Max jitter between retries")
	flags.UintVar(&globalConf.Service.RetryOptions.Attempts, "service.retry.attempts", 3, "number of attempts to retry the operation")

	return flags
}

func GetStorageFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("storage parameters", pflag.ExitOnError)

	flags.StringVar(&globalConf.Storage.Root, "storage.root", "", "root folder for local record storage (default is $HOME/.healthvault)")
	flags.IntVar(&globalConf.Storage.MaxCachedItems, "storage.maxcacheditems", DefaultMaxCachedItems, "bound of the shared in-memory item cache")
	flags.BoolVar(&globalConf.Storage.UseEncryption, "storage.useencryption", false, "encrypt record data at rest")
	flags.IntVar(&globalConf.Storage.ReadAheadChunkSize, "storage.readaheadchunksize", DefaultReadAheadChunkSize, "items fetched per view read-ahead batch")

	return flags
}

func GetLoggingFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("Logging parameters", pflag.ExitOnError)

	flags.BoolVar(&globalConf.Logging.Console.Pretty, "logging.console.pretty", true, "Enable pretty printing in console")

	return flags
}

func GetGenericFlags() *pflag.FlagSet {
	defaults := pflag.NewFlagSet("defaults for all commands", pflag.ExitOnError)
	defaults.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config.yaml)")
	defaults.BoolVar(&globalConf.Debug, "debug", false, "enable debug output")

	defaults.StringVar(&globalConf.Environment, "environment", "dev", "environment")

	return defaults
}
