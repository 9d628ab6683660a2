package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus88/Simple-PFT-Node/internal/config"
	"github.com/prometheus88/Simple-PFT-Node/internal/events"

	"github.com/sirupsen/logrus"
)

// main tails the response event stream. With -wallet it follows replies to a
// single recipient, otherwise every reply the node sends.
func main() {
	walletFlag := flag.String("wallet", "", "Only show responses sent to this wallet")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	cfg := config.Load()
	if cfg.NatsURL == "" {
		logger.Fatal("NATS_URL is required for the subscriber")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down subscriber")
		cancel()
	}()

	consumer, err := events.NewConsumer(cfg.NatsURL, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to NATS")
	}
	defer consumer.Close()

	err = consumer.Consume(ctx, *walletFlag, func(event *events.ResponseEvent) {
		logger.WithFields(logrus.Fields{
			"recipient": event.Recipient,
			"request":   event.RequestSignature,
			"response":  event.ResponseSignature,
			"memo":      event.ResponseMemo,
		}).Info("response event")
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("subscriber failed")
	}
}
