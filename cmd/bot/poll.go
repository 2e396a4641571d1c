package main

import (
	"context"
	"log"
	"time"

	"github.com/dmkorneev/go-gift-relay/internal/bot"
	"github.com/dmkorneev/go-gift-relay/internal/telegram"
)

const pollTimeoutSeconds = 50

// runPolling drives the bot off getUpdates long polls.
func runPolling(ctx context.Context, client *telegram.Client, router *bot.Router) {
	me, err := client.GetMe(ctx)
	if err != nil {
		log.Fatalf("get me: %v", err)
	}
	log.Printf("bot started as @%s (polling)", me.Username)

	var offset int64
	for {
		updates, err := client.GetUpdates(ctx, offset, pollTimeoutSeconds)
		if err != nil {
			log.Printf("get updates: %v", err)
			time.Sleep(3 * time.Second)
			continue
		}
		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			router.Dispatch(ctx, upd)
		}
	}
}
