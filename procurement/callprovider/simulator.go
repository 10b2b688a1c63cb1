package callprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-temporal-procurement/procurement/types"
)

// PriceFunc returns a vendor's unit price for an item, or false if the
// simulated vendor stays silent about it
type PriceFunc func(vendorID, itemID string) (float64, bool)

// Simulator answers calls itself: after Delay it posts the vendor's quote or
// confirmation answer to the callback URL carried in the payload.
type Simulator struct {
	Price   PriceFunc
	Decline map[string]bool
	Delay   time.Duration

	client *http.Client
	logger *slog.Logger

	mu     sync.Mutex
	hungUp map[string]bool
	wg     sync.WaitGroup
}

// NewSimulator creates a simulator posting callbacks with the given logger
func NewSimulator(price PriceFunc, delay time.Duration, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		Price:   price,
		Decline: map[string]bool{},
		Delay:   delay,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
		hungUp:  map[string]bool{},
	}
}

// CatalogPrices prices every item at its reference cost scaled by a stable
// per-vendor factor between 0.80 and 1.20
func CatalogPrices(catalog types.Catalog) PriceFunc {
	costs := make(map[string]float64, len(catalog.Items))
	for _, item := range catalog.Items {
		costs[item.ID] = item.UnitCost
	}
	return func(vendorID, itemID string) (float64, bool) {
		cost, ok := costs[itemID]
		if !ok {
			return 0, false
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(vendorID + "/" + itemID))
		factor := 0.80 + float64(h.Sum32()%41)/100
		return cost * factor, true
	}
}

// Open assigns a session id and schedules the simulated answer
func (s *Simulator) Open(ctx context.Context, contact string, payload Payload) (string, error) {
	if contact == "" {
		return "", &types.InvalidContactError{VendorID: payload.VendorID, Msg: "empty contact"}
	}
	if err := ctx.Err(); err != nil {
		return "", &types.DispatchError{VendorID: payload.VendorID, Msg: err.Error()}
	}
	id := "SIM-" + uuid.NewString()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		time.Sleep(s.Delay)
		if s.isHungUp(id) {
			return
		}
		if err := s.answer(id, payload); err != nil {
			s.logger.Warn("Simulated callback failed", "session", id, "vendor", payload.VendorID, "error", err)
		}
	}()
	return id, nil
}

// HangUp stops a pending simulated answer
func (s *Simulator) HangUp(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hungUp[sessionID] = true
	return nil
}

// Wait blocks until every scheduled answer was delivered or dropped
func (s *Simulator) Wait() {
	s.wg.Wait()
}

func (s *Simulator) isHungUp(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hungUp[id]
}

func (s *Simulator) answer(id string, payload Payload) error {
	var body any
	switch payload.Purpose {
	case PurposeConfirmation:
		body = types.ConfirmationEvent{SessionID: id, Accepted: !s.Decline[payload.VendorID]}
	default:
		event := types.QuoteEvent{SessionID: id, Complete: true}
		for _, item := range payload.Items {
			if p, ok := s.Price(payload.VendorID, item.ItemID); ok {
				p := p
				event.Quotes = append(event.Quotes, types.QuotePair{ItemID: item.ItemID, Price: &p, Quantity: item.Quantity})
			}
		}
		body = event
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := s.client.Post(payload.CallbackURL, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
	return nil
}
