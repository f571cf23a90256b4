package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"esign-backend/internal/bootstrap"
	"esign-backend/internal/shared/config"
	"esign-backend/internal/shared/server/respond"
	"esign-backend/internal/shared/telemetry"
)

type proxy interface {
	ProxyWithContext(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)
}

var (
	initOnce sync.Once
	initErr  error
	api      proxy
)

func initApp() {
	cfg := config.Load()
	telemetry.SetLevel(cfg.LogLevel)
	app, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": err.Error(), "env": cfg.Env})
		return
	}
	api = ginadapter.NewV2(app.Router)
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	initOnce.Do(initApp)
	return serve(ctx, api, initErr, req)
}

// serve answers 503 while the app cannot start so API Gateway relays a JSON
// error instead of a bare 502.
func serve(ctx context.Context, p proxy, bootErr error, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if bootErr != nil || p == nil {
		return unavailable(req), nil
	}
	return p.ProxyWithContext(ctx, req)
}

func unavailable(req events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(respond.ErrorResponse{Error: respond.ErrorBody{
		Code:    "service_unavailable",
		Message: "service is starting or misconfigured",
		Details: map[string]string{"requestId": req.RequestContext.RequestID},
	}})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       string(body),
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Cache-Control": "no-store",
		},
	}
}

func main() {
	lambda.Start(handler)
}
