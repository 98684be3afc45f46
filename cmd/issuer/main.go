package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"

	"admin-auth/internal/factory"
	"admin-auth/internal/handler"
	"admin-auth/internal/util"
)

var (
	chiLambda *chiadapter.ChiLambda
	deps      *factory.Factory
)

func init() {
	f, err := factory.New()
	if err != nil {
		util.Fatal("Failed to initialize factory", util.ErrorField(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issuer, err := f.Issuer(ctx)
	if err != nil {
		util.Fatal("Failed to build issuer", util.ErrorField(err))
	}
	if err := f.Warm(ctx, true, false); err != nil {
		util.Warn("Warm-up failed", util.ErrorField(err))
	}

	cfg := f.Config()
	router := handler.NewRouter(handler.RouterConfig{
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		Health:         f.HealthReport,
	}, handler.NewIssueHandler(issuer).RegisterRoutes)

	chiLambda = chiadapter.New(router)
	deps = f
}

func handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	resp, err := chiLambda.ProxyWithContext(ctx, req)
	// the sandbox freezes once the handler returns, so audit writes finish here
	deps.DrainAudit(ctx)
	return resp, err
}

func main() {
	lambda.Start(handle)
}
