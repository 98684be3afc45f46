package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"admin-auth/internal/factory"
	"admin-auth/internal/handler"
	"admin-auth/internal/util"
)

func main() {
	f, err := factory.New()
	if err != nil {
		util.Fatal("Failed to initialize factory", util.ErrorField(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	authorizer, err := f.Authorizer(ctx)
	if err != nil {
		cancel()
		util.Fatal("Failed to build authorizer", util.ErrorField(err))
	}
	if err := f.Warm(ctx, false, true); err != nil {
		util.Warn("Warm-up failed", util.ErrorField(err))
	}
	cancel()

	lambda.Start(handler.NewLambdaAuthorizer(authorizer))
}
