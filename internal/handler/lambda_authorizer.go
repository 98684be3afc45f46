package handler

import (
	"context"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"admin-auth/internal/util"
)

// NewLambdaAuthorizer adapts the authorizer to an API Gateway TOKEN
// authorizer. Denials come back as an explicit Deny policy, never an error.
func NewLambdaAuthorizer(a TokenAuthorizer) func(context.Context, events.APIGatewayCustomAuthorizerRequest) (events.APIGatewayCustomAuthorizerResponse, error) {
	return func(ctx context.Context, req events.APIGatewayCustomAuthorizerRequest) (events.APIGatewayCustomAuthorizerResponse, error) {
		decision := a.Authorize(ctx, req.AuthorizationToken)
		if !decision.Allow {
			util.Info("Authorizer denied request", util.String("reason", decision.Reason))
			return policy("unauthorized", "Deny", req.MethodArn, nil), nil
		}
		return policy(decision.Identity, "Allow", stageWildcard(req.MethodArn), map[string]interface{}{
			"email":    decision.Identity,
			"token_id": decision.TokenID,
		}), nil
	}
}

func policy(principal, effect, resource string, values map[string]interface{}) events.APIGatewayCustomAuthorizerResponse {
	return events.APIGatewayCustomAuthorizerResponse{
		PrincipalID: principal,
		PolicyDocument: events.APIGatewayCustomAuthorizerPolicy{
			Version: "2012-10-17",
			Statement: []events.IAMPolicyStatement{{
				Action:   []string{"execute-api:Invoke"},
				Effect:   effect,
				Resource: []string{resource},
			}},
		},
		Context: values,
	}
}

// stageWildcard widens arn:...:api/stage/METHOD/path to arn:...:api/stage/*
// so a cached Allow covers every protected route of the stage.
func stageWildcard(methodArn string) string {
	parts := strings.SplitN(methodArn, "/", 3)
	if len(parts) < 3 {
		return methodArn
	}
	return parts[0] + "/" + parts[1] + "/*"
}
