package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/uzsupport/murojaat/ai"
	"github.com/uzsupport/murojaat/ai/safety"
	"github.com/uzsupport/murojaat/ingest"
	"github.com/uzsupport/murojaat/internal/profile"
	"github.com/uzsupport/murojaat/internal/version"
	"github.com/uzsupport/murojaat/plugin/notify"
	"github.com/uzsupport/murojaat/plugin/notify/telegram"
	"github.com/uzsupport/murojaat/routing"
	"github.com/uzsupport/murojaat/server"
	"github.com/uzsupport/murojaat/store"
	"github.com/uzsupport/murojaat/store/db"
)

var rootCmd = &cobra.Command{
	Use:   "murojaat",
	Short: `AI routing service for citizen support messages. Classifies inbound messages and routes them to the right department.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Systemd deployments configure the environment themselves.
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := loadProfile()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		storeInstance, cleanup, err := openStore(ctx, instanceProfile)
		if err != nil {
			slog.Error("failed to open store", "error", err)
			return
		}
		defer cleanup()

		pipeline, llm, err := buildPipeline(instanceProfile, storeInstance)
		if err != nil {
			slog.Error("failed to build pipeline", "error", err)
			return
		}
		go llm.Warmup(ctx)

		s := server.NewServer(instanceProfile, storeInstance, pipeline)

		c := make(chan os.Signal, 1)
		// SIGTERM is the graceful shutdown signal of most process
		// managers (systemd, Kubernetes).
		signal.Notify(c, terminationSignals...)
		go func() {
			<-c
			if err := s.Shutdown(context.Background()); err != nil {
				slog.Error("failed to shut down server", "error", err)
			}
			cancel()
		}()

		printGreetings(instanceProfile)
		if err := s.Start(ctx); err != nil {
			slog.Error("failed to start server", "error", err)
			cancel()
		}

		<-ctx.Done()
	},
}

var indexCmd = &cobra.Command{
	Use:   "index <catalog.json>",
	Short: "Embed the department catalog and upsert it into the vector index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		instanceProfile := loadProfile()

		ctx := cmd.Context()
		storeInstance, cleanup, err := openStore(ctx, instanceProfile)
		if err != nil {
			return err
		}
		defer cleanup()

		aiConfig := ai.NewConfigFromProfile(instanceProfile)
		if err := aiConfig.Validate(); err != nil {
			return err
		}
		embedder, err := ai.NewEmbeddingService(&aiConfig.Embedding)
		if err != nil {
			return err
		}

		job := ingest.NewJob(storeInstance, embedder, aiConfig.Embedding.Model)
		written, err := job.Run(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Indexed %d department profile(s) from %s\n", written, args[0])
		return nil
	},
}

func loadProfile() *profile.Profile {
	instanceProfile := &profile.Profile{
		Mode:    viper.GetString("mode"),
		Addr:    viper.GetString("addr"),
		Port:    viper.GetInt("port"),
		Data:    viper.GetString("data"),
		Driver:  viper.GetString("driver"),
		DSN:     viper.GetString("dsn"),
		Version: version.GetCurrentVersion(viper.GetString("mode")),
	}
	instanceProfile.FromEnv()
	if err := instanceProfile.Validate(); err != nil {
		panic(err)
	}
	return instanceProfile
}

func openStore(ctx context.Context, instanceProfile *profile.Profile) (*store.Store, func(), error) {
	dbDriver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		return nil, nil, err
	}

	storeInstance := store.New(dbDriver, instanceProfile)
	if err := storeInstance.Migrate(ctx); err != nil {
		_ = storeInstance.Close()
		return nil, nil, err
	}

	return storeInstance, func() {
		if err := storeInstance.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}, nil
}

func buildPipeline(instanceProfile *profile.Profile, storeInstance *store.Store) (*routing.Pipeline, ai.LLMService, error) {
	aiConfig := ai.NewConfigFromProfile(instanceProfile)
	if err := aiConfig.Validate(); err != nil {
		return nil, nil, err
	}

	embedder, err := ai.NewEmbeddingService(&aiConfig.Embedding)
	if err != nil {
		return nil, nil, err
	}
	llm, err := ai.NewLLMService(&aiConfig.LLM)
	if err != nil {
		return nil, nil, err
	}

	var sink notify.Sink
	if instanceProfile.TelegramBotToken != "" {
		sink, err = telegram.NewSink(&telegram.Config{
			BotToken:    instanceProfile.TelegramBotToken,
			AlertChatID: instanceProfile.AlertChatID,
		})
		if err != nil {
			return nil, nil, err
		}
	} else {
		slog.Warn("no Telegram bot token configured, notifications go to the stub sink")
		sink = notify.NewStubSink()
	}

	pipeline := routing.NewPipeline(instanceProfile, storeInstance, embedder, llm, safety.NewScreener(), sink)
	return pipeline, llm, nil
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "postgres")
	viper.SetDefault("port", 28090)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28090, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "postgres", "database driver (postgres, sqlite)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")

	for _, key := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("murojaat")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	rootCmd.AddCommand(indexCmd)
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("murojaat %s started\n", profile.Version)
	fmt.Printf("Mode: %s\n", profile.Mode)
	fmt.Printf("Database driver: %s\n", profile.Driver)
	if len(profile.Addr) == 0 {
		fmt.Printf("Listening on port %d\n", profile.Port)
	} else {
		fmt.Printf("Listening on %s:%d\n", profile.Addr, profile.Port)
	}
}

// isRunningAsSystemdService detects if the process is running under systemd.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
