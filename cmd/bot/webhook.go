package main

import (
	"context"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/dmkorneev/go-gift-relay/internal/bot"
	"github.com/dmkorneev/go-gift-relay/internal/config"
	"github.com/dmkorneev/go-gift-relay/internal/telegram"
)

func setupRouter(router *bot.Router) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/telegram/webhook", func(c *gin.Context) {
		var upd telegram.Update
		if err := c.ShouldBindJSON(&upd); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_update", "msg": err.Error()})
			return
		}
		router.Dispatch(c.Request.Context(), upd)
		c.Status(http.StatusOK)
	})

	return r
}

// runWebhook serves Telegram webhook updates: a plain HTTP server when
// RUN_LOCAL=true, otherwise Lambda behind API Gateway.
func runWebhook(cfg config.Config, router *bot.Router) {
	r := setupRouter(router)

	if cfg.RunLocal {
		log.Printf("running local webhook server on %s", cfg.ListenAddr)
		if err := r.Run(cfg.ListenAddr); err != nil {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
