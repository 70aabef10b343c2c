package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"github.com/beamstore/beamstore/internal/chunk"
	"github.com/beamstore/beamstore/internal/database"
	"github.com/beamstore/beamstore/internal/metadata"
	"github.com/beamstore/beamstore/internal/scheduler"
	"github.com/beamstore/beamstore/internal/transport"
	"github.com/beamstore/beamstore/internal/webserver"
	"github.com/beamstore/beamstore/internal/webserver/service"
	"github.com/joho/godotenv"
	"github.com/mdouchement/logger"
	"github.com/ncw/swift/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const dbname = "beamstore.db"

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	binding string
	port    string
)

func main() {
	godotenv.Load()

	c := &cobra.Command{
		Use:     "beamstore",
		Short:   "Chunked encrypted file storage over a message transport",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    cobra.ExactArgs(0),
	}
	c.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Version for beamstore",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(c.Version)
		},
	})
	c.AddCommand(initCmd)
	c.AddCommand(reindexCmd)

	serverCmd.Flags().StringVarP(&binding, "binding", "b", "0.0.0.0", "Server's binding")
	serverCmd.Flags().StringVarP(&port, "port", "p", "5000", "Server's port")
	c.AddCommand(serverCmd)

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

var (
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Init the database",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			return database.StormInit(nameWithEnv("DATABASE_PATH", dbname))
		},
	}

	//

	reindexCmd = &cobra.Command{
		Use:   "reindex",
		Short: "Reindex the database",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			return database.StormReIndex(nameWithEnv("DATABASE_PATH", dbname))
		},
	}

	//

	serverCmd = &cobra.Command{
		Use:   "server",
		Short: "Start server",
		Args:  cobra.ExactArgs(0),
		RunE: func(c *cobra.Command, _ []string) error {
			ctrl := webserver.Controller{
				Version: c.Parent().Version,
				Service: service.Config{
					ChunkSize:     envIntORdefault("BEAMSTORE_CHUNK_SIZE", chunk.DefaultSize),
					BatchLength:   envIntORdefault("BEAMSTORE_BATCH_LENGTH", chunk.DefaultBatchLength),
					MaxObjectSize: int64(envIntORdefault("BEAMSTORE_MAX_OBJECT_SIZE", 1<<30)),
					Timeout:       time.Duration(envIntORdefault("BEAMSTORE_TRANSPORT_TIMEOUT", 60)) * time.Second,
				},
				UploadsPerMinute: envIntORdefault("BEAMSTORE_UPLOADS_PER_MINUTE", 10),
			}

			//

			log := logrus.New()
			log.SetFormatter(&logger.LogrusTextFormatter{
				DisableColors:   false,
				ForceColors:     true,
				ForceFormatting: true,
				PrefixRE:        regexp.MustCompile(`^(\[.*?\])\s`),
				FullTimestamp:   true,
				TimestampFormat: "2006-01-02 15:04:05",
			})
			ctrl.Logger = logger.WrapLogrus(log)

			//

			db, err := database.StormOpen(nameWithEnv("DATABASE_PATH", dbname))
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()
			ctrl.Database = db

			//

			ctrl.Transport, err = messenger(ctrl.Service.Timeout)
			if err != nil {
				return err
			}

			//

			secret, err := metadataSecret()
			if err != nil {
				return err
			}
			codec, err := metadata.NewCodec(secret)
			if err != nil {
				return err
			}
			ctrl.Metadata, err = metadata.NewStore(codec, ctrl.Transport,
				envIntORdefault("BEAMSTORE_METADATA_CACHE", metadata.DefaultCacheCapacity))
			if err != nil {
				return err
			}

			//

			scheduler.Start(scheduler.Controller{
				Logger:        ctrl.Logger,
				Database:      ctrl.Database,
				Transport:     ctrl.Transport,
				Timeout:       ctrl.Service.Timeout,
				Specification: envORdefault("BEAMSTORE_SWEEP_SPECIFICATION", "@every 5m"),
			})

			//

			engine := webserver.EchoEngine(ctrl)
			webserver.PrintRoutes(engine)

			listen := fmt.Sprintf("%s:%s", binding, port)
			log.Printf("Server listening on %s", listen)
			return errors.Wrap(
				engine.Start(listen),
				"could not run server",
			)
		},
	}
)

// messenger builds the transport selected by BEAMSTORE_TRANSPORT.
func messenger(timeout time.Duration) (transport.Messenger, error) {
	limits := transport.Limits{
		MaxAttachments: envIntORdefault("BEAMSTORE_MAX_ATTACHMENTS", transport.DefaultMaxAttachments),
		MaxMessageSize: int64(envIntORdefault("BEAMSTORE_MAX_MESSAGE_SIZE", transport.DefaultMaxMessageSize)),
	}

	switch kind := envORdefault("BEAMSTORE_TRANSPORT", "discord"); kind {
	case "discord":
		token := os.Getenv("DISCORD_CLIENT_TOKEN")
		channel := os.Getenv("DISCORD_CHANNEL_ID")
		if token == "" || channel == "" {
			return nil, errors.New("DISCORD_CLIENT_TOKEN and DISCORD_CHANNEL_ID are required")
		}

		return transport.NewDiscord(transport.DiscordConfig{
			Token:     token,
			ChannelID: channel,
			Timeout:   timeout,
			Limits:    limits,
		}), nil
	case "swift":
		connection := &swift.Connection{
			UserName: os.Getenv("SWIFT_USERNAME"),
			ApiKey:   os.Getenv("SWIFT_API_KEY"),
			AuthUrl:  os.Getenv("SWIFT_AUTH_URL"),
			Domain:   envORdefault("SWIFT_DOMAIN", "Default"),
			Tenant:   os.Getenv("SWIFT_TENANT"),
		}
		if err := connection.Authenticate(context.Background()); err != nil {
			return nil, errors.Wrap(err, "could not authenticate against swift")
		}

		return transport.NewSwift(transport.SwiftConfig{
			Connection: connection,
			Container:  envORdefault("SWIFT_CONTAINER", "beamstore"),
			Limits:     limits,
		}), nil
	case "memory":
		// Development only: contents are gone when the process stops.
		return transport.NewInMemory(limits), nil
	default:
		return nil, errors.Errorf("unknown transport: %s", kind)
	}
}

func metadataSecret() ([]byte, error) {
	encoded := os.Getenv("BEAMSTORE_METADATA_SECRET")
	if encoded == "" {
		return nil, errors.New("BEAMSTORE_METADATA_SECRET is required (64 hex characters)")
	}

	secret, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "malformed BEAMSTORE_METADATA_SECRET")
	}
	return secret, nil
}

func nameWithEnv(env, name string) string {
	p := os.Getenv(env)
	if len(p) == 0 {
		return name
	}
	return filepath.Join(p, name)
}

func envORdefault(name, fallback string) string {
	p := os.Getenv(name)
	if len(p) == 0 {
		return fallback
	}
	return p
}

func envIntORdefault(name string, fallback int) int {
	p := os.Getenv(name)
	if len(p) == 0 {
		return fallback
	}

	n, err := strconv.Atoi(p)
	if err != nil {
		log.Fatalf("%s: %s", name, err)
	}
	return n
}
