package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-yaml"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mechatbot/mechatbot"
	"github.com/mechatbot/mechatbot/config"
	"github.com/mechatbot/mechatbot/httpapi"
	"github.com/mechatbot/mechatbot/internal/mylog"
	"github.com/mechatbot/mechatbot/knowledge"
)

type personaFile struct {
	Personas []struct {
		CreatedBy    string `yaml:"createdBy"`
		InstanceName string `yaml:"instanceName"`
		Prompt       string `yaml:"prompt"`
	} `yaml:"personas"`
}

func newRootCmd() *cobra.Command {
	params := &struct {
		Port         int
		PersonasFile string
	}{}
	cmd := &cobra.Command{
		Use:   "mechatbot",
		Short: "Personal RAG chatbot server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			openaiConf := config.NewOpenAIConfig()
			knowledgeConf := config.NewKnowledgeConfig()
			chatConf := config.NewChatConfig()
			logConf := config.NewLogConfig()
			serverConf := config.NewServerConfig()
			for _, conf := range []interface{ Resolve(testing bool) error }{
				openaiConf, knowledgeConf, chatConf, logConf, serverConf,
			} {
				if err := conf.Resolve(false); err != nil {
					return errors.Wrapf(err, "failed to resolve config")
				}
			}
			if cmd.Flags().Changed("port") {
				serverConf.Port = params.Port
			}

			logger := mylog.NewLogger(logConf.LogLevel, logConf.LogHandler)

			store, err := knowledge.NewSqliteStore(knowledgeConf.SqlitePath)
			if err != nil {
				return errors.Wrapf(err, "failed to open knowledge store")
			}
			index, err := knowledge.NewSqliteVecIndex(knowledgeConf.VectorPath, knowledgeConf.VectorDimension)
			if err != nil {
				return errors.Wrapf(err, "failed to open vector index")
			}

			bot, err := mechatbot.New(
				ctx,
				mechatbot.WithLogger(logger),
				mechatbot.WithOpenAIConfig(openaiConf),
				mechatbot.WithKnowledgeConfig(knowledgeConf),
				mechatbot.WithChatConfig(chatConf),
				mechatbot.WithStore(store),
				mechatbot.WithVectorIndex(index),
			)
			if err != nil {
				return errors.Wrapf(err, "failed to create chatbot")
			}
			defer func() {
				if err := bot.Close(); err != nil {
					logger.Error("failed to close chatbot", "error", err)
				}
			}()

			if params.PersonasFile != "" {
				if err := loadPersonas(ctx, bot, params.PersonasFile); err != nil {
					return err
				}
			}

			handler := httpapi.NewServer(logger, bot.Manager(), bot.Store(), bot.Engine(), serverConf).Handler()

			logger.Info("server started", "host", serverConf.Host, "port", serverConf.Port)
			defer logger.Info("server stopped")

			server := &http.Server{
				Addr:    fmt.Sprintf("%s:%d", serverConf.Host, serverConf.Port),
				Handler: handler,
				BaseContext: func(l net.Listener) context.Context {
					return ctx
				},
			}

			go func() {
				<-ctx.Done()
				if err := server.Shutdown(context.WithoutCancel(ctx)); err != nil {
					logger.Error("failed to shutdown server", "error", err)
				}
			}()

			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&params.Port, "port", "p", 3000, "Port to listen on")
	cmd.Flags().StringVar(&params.PersonasFile, "personas", "", "YAML file of persona prompts to preload")

	return cmd
}

func loadPersonas(ctx context.Context, bot *mechatbot.MeChatbot, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read personas file: %s", path)
	}
	var file personaFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return errors.Wrapf(err, "failed to unmarshal personas file: %s", path)
	}
	for _, p := range file.Personas {
		scope := knowledge.Scope{CreatedBy: p.CreatedBy, InstanceName: p.InstanceName}
		if err := scope.Validate(); err != nil {
			return errors.Wrapf(err, "invalid persona scope in %s", path)
		}
		if err := bot.SetPersona(ctx, scope, p.Prompt); err != nil {
			return errors.Wrapf(err, "failed to preload persona for %s/%s", p.CreatedBy, p.InstanceName)
		}
	}
	return nil
}

func Execute(ctx context.Context) {
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %+v\n", err)
		os.Exit(1)
	}
}
