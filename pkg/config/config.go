/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "HEALTHVAULT"

	// Service environment presets.
	EnvironmentUSProduction = "us-production"
	EnvironmentUSPPE        = "us-ppe"
	EnvironmentUKProduction = "uk-production"
	EnvironmentUKPPE        = "uk-ppe"
)

var (
	cfgFile    string
	globalConf Bootstrap
)

type Bootstrap struct {
	Environment string  `yaml:"environment" json:"environment"`
	Debug       bool    `yaml:"debug" json:"debug"`
	App         App     `yaml:"app" json:"app"`
	Service     Service `yaml:"service" json:"service"`
	Storage     Storage `yaml:"storage" json:"storage"`
	Logging     Logging `yaml:"logging" json:"logging"`
}

type App struct {
	MasterAppID  string `yaml:"masterappid" json:"masterappid"`
	Name         string `yaml:"name" json:"name"`
	InstanceName string `yaml:"instancename" json:"instancename"`
	Country      string `yaml:"country" json:"country"`
	Language     string `yaml:"language" json:"language"`
}

type Service struct {
	Environment  string        `yaml:"environment" json:"environment"`
	ServiceURL   string        `yaml:"serviceurl" json:"serviceurl"`
	ShellURL     string        `yaml:"shellurl" json:"shellurl"`
	WriteTimeout time.Duration `yaml:"writetimeout" json:"writetimeout"`
	RetryOptions RetryOptions  `yaml:"retry" json:"retry"`
}

type Storage struct {
	Root               string `yaml:"root" json:"root"`
	MaxCachedItems     int    `yaml:"maxcacheditems" json:"maxcacheditems"`
	UseEncryption      bool   `yaml:"useencryption" json:"useencryption"`
	ReadAheadChunkSize int    `yaml:"readaheadchunksize" json:"readaheadchunksize"`
}

type Logging struct {
	Console ConsoleLogging `yaml:"console" json:"console"`
}

type ConsoleLogging struct {
	Pretty bool `yaml:"pretty" json:"pretty"`
}

type RetryOptions struct {
	Delay     time.Duration `yaml:"delay" json:"delay"`
	MaxJitter time.Duration `yaml:"maxjitter" json:"maxjitter"`
	Attempts  uint          `yaml:"attempts" json:"attempts"`
}

// Bind each cobra flag to its associated viper configuration (config file and environment variable)
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Environment variables can't have dashes in them, so bind them to their equivalent
		// keys with underscores, e.g. --favorite-color to HEALTHVAULT_FAVORITE_COLOR
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			_ = v.BindEnv(f.Name, fmt.Sprintf("%s_%s", EnvPrefix, envVarSuffix))
		}

		// Apply the viper config value to the flag when the flag is not set and viper has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			_ = cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val))
		}
	})
}

func Get() *Bootstrap {
	return &globalConf
}

func GetConfigFileName() string {
	return cfgFile
}

func init() {
	globalConf = Bootstrap{}
}
