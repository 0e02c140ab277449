package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"puhuri/internal/config"
	"puhuri/internal/queue"
)

type commandContext struct {
	configFlag    *string
	verboseFlag   *bool
	logFormatFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag *string, verboseFlag *bool, logFormatFlag *string) *commandContext {
	return &commandContext{
		configFlag:    configFlag,
		verboseFlag:   verboseFlag,
		logFormatFlag: logFormatFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, resolvedPath, exists, err := config.Load(c.configFlagValue())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolvedPath
		c.configExists = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) configFlagValue() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// withStore opens the queue database for the duration of fn.
func (c *commandContext) withStore(fn func(*queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func (c *commandContext) logLevel(cfg *config.Config) string {
	if c.verboseFlag != nil && *c.verboseFlag {
		return "debug"
	}
	return cfg.Logging.Level
}

func (c *commandContext) logFormat(cfg *config.Config) string {
	if c.logFormatFlag != nil {
		if format := strings.TrimSpace(*c.logFormatFlag); format != "" {
			return format
		}
	}
	return cfg.Logging.Format
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
