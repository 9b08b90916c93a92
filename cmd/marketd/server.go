package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/nats-io/nats.go"

	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/escrow"
	"github.com/cloudx-io/auctionhouse/events"
	"github.com/cloudx-io/auctionhouse/token"
)

// custodyAccount holds minted item tokens between creation and settlement.
const custodyAccount = "marketd-custody"

// MarketServer serves marketapi requests over TCP. One request per
// connection: the client writes a JSON document, half-closes, and reads the
// JSON response.
type MarketServer struct {
	cfg    serverConfig
	market *core.Market
	book   *escrow.BalanceBook
	tokens *token.Registry
}

// NewMarketServer wires the market over its in-process backends and, when a
// snapshot exists, restores the previous state.
func NewMarketServer(cfg serverConfig) (*MarketServer, error) {
	var notifier events.Notifier = events.LogNotifier{}
	if cfg.natsURL != "" {
		conn, err := nats.Connect(cfg.natsURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.natsURL, err)
		}
		notifier = events.NewNATSNotifier(conn)
		log.Printf("INFO: Publishing events to NATS at %s", cfg.natsURL)
	}

	book := escrow.NewBalanceBook()
	tokens := token.NewRegistry()
	market := core.NewMarket(core.Config{
		Admin:             cfg.admin,
		Custody:           custodyAccount,
		ListingFee:        cfg.listingFee,
		RoyaltyFeePercent: cfg.royaltyPercent,
		BiddingWindow:     cfg.biddingWindow,
	}, core.NewMarketStore(), book, tokens, notifier)

	s := &MarketServer{cfg: cfg, market: market, book: book, tokens: tokens}
	if err := s.loadSnapshot(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MarketServer) Start() error {
	listener, err := net.Listen("tcp", s.cfg.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to create listener on %s: %w", s.cfg.listenAddr, err)
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Printf("ERROR: Failed to close listener: %v", err)
		}
	}()

	log.Printf("INFO: Market server listening on %s", listener.Addr())

	semaphore := make(chan struct{}, s.cfg.maxWorkers)
	log.Printf("INFO: Worker pool initialized with %d max concurrent workers", s.cfg.maxWorkers)

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Printf("ERROR: Failed to accept connection: %v", err)
			continue
		}

		// Acquire worker slot - immediate rejection if pool full
		select {
		case semaphore <- struct{}{}:
			go func(c net.Conn) {
				defer func() { <-semaphore }() // Release worker slot
				s.handleConnection(c)
			}(conn)
		default:
			log.Printf("INFO: No workers available, rejecting connection (pool full)")
			if err := conn.Close(); err != nil {
				log.Printf("ERROR: Failed to close rejected connection: %v", err)
			}
		}
	}
}

func (s *MarketServer) handleConnection(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Panic recovered in handleConnection: %v", r)
		}
		if err := conn.Close(); err != nil {
			log.Printf("ERROR: Failed to close connection: %v", err)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, conn); err != nil {
		log.Printf("ERROR: Failed to read request: %v", err)
		return
	}

	response := s.dispatch(buf.Bytes())

	if err := json.NewEncoder(conn).Encode(response); err != nil {
		log.Printf("ERROR: Failed to encode response: %v", err)
	}
}

// stateSnapshot is the on-disk shape: one CBOR document holding a section
// per backend. The three sections are written together in one shutdown pass
// so market state, escrowed funds, and token custody stay consistent; a
// snapshot missing any section would restore auctions that can never settle.
type stateSnapshot struct {
	Market cbor.RawMessage `cbor:"market"`
	Funds  cbor.RawMessage `cbor:"funds"`
	Tokens cbor.RawMessage `cbor:"tokens"`
}

// loadSnapshot restores durable state from the configured snapshot file, if
// one exists.
func (s *MarketServer) loadSnapshot() error {
	if s.cfg.snapshotPath == "" {
		return nil
	}
	f, err := os.Open(s.cfg.snapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("INFO: No snapshot at %s, starting empty", s.cfg.snapshotPath)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	var snap stateSnapshot
	if err := cbor.NewDecoder(f).Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode snapshot %s: %w", s.cfg.snapshotPath, err)
	}
	if err := s.market.ReadSnapshot(bytes.NewReader(snap.Market)); err != nil {
		return fmt.Errorf("failed to restore market state from %s: %w", s.cfg.snapshotPath, err)
	}
	if err := s.book.ReadSnapshot(bytes.NewReader(snap.Funds)); err != nil {
		return fmt.Errorf("failed to restore balance book from %s: %w", s.cfg.snapshotPath, err)
	}
	if err := s.tokens.ReadSnapshot(bytes.NewReader(snap.Tokens)); err != nil {
		return fmt.Errorf("failed to restore token registry from %s: %w", s.cfg.snapshotPath, err)
	}
	log.Printf("INFO: Restored market state from %s", s.cfg.snapshotPath)
	return nil
}

// saveSnapshot writes durable state to the configured snapshot file,
// replacing it atomically.
func (s *MarketServer) saveSnapshot() {
	if s.cfg.snapshotPath == "" {
		return
	}

	var market, funds, tokens bytes.Buffer
	if err := s.market.WriteSnapshot(&market); err != nil {
		log.Printf("ERROR: Failed to snapshot market state: %v", err)
		return
	}
	if err := s.book.WriteSnapshot(&funds); err != nil {
		log.Printf("ERROR: Failed to snapshot balance book: %v", err)
		return
	}
	if err := s.tokens.WriteSnapshot(&tokens); err != nil {
		log.Printf("ERROR: Failed to snapshot token registry: %v", err)
		return
	}
	snap := stateSnapshot{
		Market: market.Bytes(),
		Funds:  funds.Bytes(),
		Tokens: tokens.Bytes(),
	}

	tmp := s.cfg.snapshotPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		log.Printf("ERROR: Failed to create snapshot file: %v", err)
		return
	}
	if err := cbor.NewEncoder(f).Encode(snap); err != nil {
		log.Printf("ERROR: Failed to write snapshot: %v", err)
		_ = f.Close()
		return
	}
	if err := f.Close(); err != nil {
		log.Printf("ERROR: Failed to close snapshot file: %v", err)
		return
	}
	if err := os.Rename(tmp, s.cfg.snapshotPath); err != nil {
		log.Printf("ERROR: Failed to move snapshot into place: %v", err)
		return
	}
	log.Printf("INFO: Saved market state to %s", s.cfg.snapshotPath)
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		log.Fatalf("ERROR: Invalid configuration: %v", err)
	}

	server, err := NewMarketServer(cfg)
	if err != nil {
		log.Fatalf("ERROR: Failed to initialize server: %v", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Printf("INFO: Received %s, saving snapshot and shutting down", sig)
		server.saveSnapshot()
		os.Exit(0)
	}()

	log.Fatal(server.Start())
}
