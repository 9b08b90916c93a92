package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// serverConfig collects everything marketd reads from the environment.
type serverConfig struct {
	listenAddr     string
	maxWorkers     int
	admin          string
	listingFee     decimal.Decimal
	royaltyPercent int64
	biddingWindow  time.Duration
	snapshotPath   string
	natsURL        string
}

func parseConfig() (serverConfig, error) {
	maxWorkers, err := getRequiredEnvInt("MARKETD_MAX_WORKERS")
	if err != nil {
		return serverConfig{}, err
	}

	admin := os.Getenv("MARKETD_ADMIN_ACCOUNT")
	if admin == "" {
		return serverConfig{}, fmt.Errorf("required environment variable MARKETD_ADMIN_ACCOUNT is not set")
	}

	royaltyPercent, err := getRequiredEnvInt("MARKETD_ROYALTY_PERCENT")
	if err != nil {
		return serverConfig{}, err
	}
	if royaltyPercent < 0 || royaltyPercent > 100 {
		return serverConfig{}, fmt.Errorf("MARKETD_ROYALTY_PERCENT must be within [0, 100], got %d", royaltyPercent)
	}

	listingFee := decimal.Zero
	if raw := os.Getenv("MARKETD_LISTING_FEE"); raw != "" {
		listingFee, err = decimal.NewFromString(raw)
		if err != nil || listingFee.Sign() < 0 {
			return serverConfig{}, fmt.Errorf("invalid MARKETD_LISTING_FEE %q", raw)
		}
	}

	biddingWindow := 24 * time.Hour
	if raw := os.Getenv("MARKETD_BIDDING_WINDOW"); raw != "" {
		biddingWindow, err = time.ParseDuration(raw)
		if err != nil || biddingWindow <= 0 {
			return serverConfig{}, fmt.Errorf("invalid MARKETD_BIDDING_WINDOW %q (want a positive duration like 24h)", raw)
		}
	}

	listenAddr := os.Getenv("MARKETD_LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":7500"
	}

	return serverConfig{
		listenAddr:     listenAddr,
		maxWorkers:     maxWorkers,
		admin:          admin,
		listingFee:     listingFee,
		royaltyPercent: int64(royaltyPercent),
		biddingWindow:  biddingWindow,
		snapshotPath:   os.Getenv("MARKETD_SNAPSHOT_PATH"),
		natsURL:        os.Getenv("MARKETD_NATS_URL"),
	}, nil
}

// Helper function for required environment variable parsing
func getRequiredEnvInt(key string) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return 0, fmt.Errorf("required environment variable %s is not set", key)
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %s (must be a valid integer)", key, value)
	}

	log.Printf("INFO: Using %s=%d from environment", key, intValue)
	return intValue, nil
}
