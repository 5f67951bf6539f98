package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "mockpanel"
)

type Config struct {
	Interview *InterviewConfig `mapstructure:"interview"`
	AI        *AIConfig        `mapstructure:"ai"`
	Server    *ServerConfig    `mapstructure:"server"`
	Database  *DatabaseConfig  `mapstructure:"database"`
}

type InterviewConfig struct {
	Company       string `mapstructure:"company"`
	Role          string `mapstructure:"role"`
	Mode          string `mapstructure:"mode"`
	QuestionCount int    `mapstructure:"question-count"`
	BriefFile     string `mapstructure:"brief-file"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "mockpanel is a multi-persona mock interview runner with AI-backed evaluation",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("database.dsn", "MOCKPANEL_DATABASE_DSN"); err != nil {
		log.Fatalf("binding MOCKPANEL_DATABASE_DSN environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is mockpanel.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config is needed only for the run and serve commands.
	if runCmd.CalledAs() == "" && serveCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
