// Package app wires configuration, AWS clients and the widget services into
// a handler. Both entrypoints build through NewHandler.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"bread-widget/handler"
	"bread-widget/internal/config"
	"bread-widget/internal/integrations/breadapi"
	"bread-widget/internal/integrations/paramstore"
	"bread-widget/internal/repository"
	"bread-widget/internal/usecase"
)

// NewHandler builds the request handler for cfg. AWS clients are only
// created when SESSION_TABLE or PARAM_PREFIX is set.
func NewHandler(ctx context.Context, cfg config.Config) (*handler.Handler, error) {
	opts := []usecase.PageOption{
		usecase.WithLanguage(cfg.Language),
		usecase.WithPageTTL(cfg.PageTTL),
	}

	if cfg.ParamPrefix != "" || cfg.SessionTable != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("app: load AWS config: %w", err)
		}

		if cfg.ParamPrefix != "" {
			params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
			if err != nil {
				return nil, fmt.Errorf("app: create SSM client: %w", err)
			}
			widgetCopy, err := config.LoadCopy(ctx, params, cfg.ParamPrefix)
			if err != nil {
				slog.Warn("using default widget copy", "err", err)
			}
			opts = append(opts, usecase.WithCopy(widgetCopy))
		}

		if cfg.SessionTable != "" {
			cache, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.SessionTable)
			if err != nil {
				return nil, fmt.Errorf("app: create session cache: %w", err)
			}
			opts = append(opts, usecase.WithSessionCache(cache))
		}
	}

	bread, err := breadapi.NewClient(cfg.BreadAPIURL,
		breadapi.WithPaths(cfg.StartPath, cfg.TurnPath),
		breadapi.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("app: create bread api client: %w", err)
	}

	pages, err := usecase.NewPageService(bread, opts...)
	if err != nil {
		return nil, fmt.Errorf("app: create page service: %w", err)
	}
	return handler.NewHandler(pages)
}
