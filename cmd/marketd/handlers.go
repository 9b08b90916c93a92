package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/marketapi"
)

// dispatch routes one decoded request payload to its handler and always
// produces a response, malformed input included.
func (s *MarketServer) dispatch(payload []byte) marketapi.MarketResponse {
	var base marketapi.BaseRequest
	if err := json.Unmarshal(payload, &base); err != nil {
		log.Printf("ERROR: Failed to decode base request: %v", err)
		return failure("error", fmt.Errorf("malformed request: %w", err))
	}

	log.Printf("INFO: Received request type: %s", base.Type)

	switch base.Type {
	case marketapi.TypePing:
		return marketapi.MarketResponse{Type: "pong", Success: true, Message: "market server is healthy"}

	case marketapi.TypeCreateAuction:
		return s.handleCreateAuction(payload)

	case marketapi.TypeSetListingFee:
		return s.handleSetListingFee(payload)

	case marketapi.TypeChangePrice:
		return s.handleChangePrice(payload)

	case marketapi.TypePlaceBid:
		return s.handlePlaceBid(payload)

	case marketapi.TypeClaimPrize:
		return s.handleClaimPrize(payload)

	case marketapi.TypeGetListingFee:
		fee := s.market.ListingFee().InexactFloat64()
		return marketapi.MarketResponse{Type: responseType(base.Type), Success: true, ListingFee: &fee}

	case marketapi.TypeGetUnsold:
		return itemsResponse(base.Type, s.market.ListUnsold())

	case marketapi.TypeGetSold:
		return itemsResponse(base.Type, s.market.ListSold())

	case marketapi.TypeGetLive:
		return itemsResponse(base.Type, s.market.ListLive())

	case marketapi.TypeGetMyAuctions:
		var req marketapi.QueryRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return failure(base.Type, fmt.Errorf("malformed request: %w", err))
		}
		return itemsResponse(base.Type, s.market.ListByOwner(req.Caller))

	case marketapi.TypeGetBidders:
		var req marketapi.QueryRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return failure(base.Type, fmt.Errorf("malformed request: %w", err))
		}
		return marketapi.MarketResponse{
			Type:    responseType(base.Type),
			Success: true,
			ItemID:  req.ItemID,
			Bids:    marketapi.NewBidRecords(s.market.ListBids(req.ItemID)),
		}

	default:
		return failure("error", fmt.Errorf("unknown request type: %s", base.Type))
	}
}

func (s *MarketServer) handleCreateAuction(payload []byte) marketapi.MarketResponse {
	var req marketapi.CreateAuctionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return failure(marketapi.TypeCreateAuction, fmt.Errorf("malformed request: %w", err))
	}

	// The attached fee enters escrow up front; a rejected creation hands
	// it straight back.
	attached := core.NormalizeAmount(req.AttachedFee)
	if err := s.book.DepositEscrow(attached); err != nil {
		return failure(marketapi.TypeCreateAuction, err)
	}

	id, feeCharged, err := s.market.CreateItem(context.Background(), core.Listing{
		Name:        req.Name,
		Description: req.Description,
		ImageRef:    req.ImageRef,
		MetadataRef: req.MetadataRef,
		Price:       core.NormalizeAmount(req.Price),
		Seller:      req.Seller,
		AttachedFee: attached,
		Biddable:    req.Biddable,
	}, time.Now())
	if err != nil {
		if werr := s.book.WithdrawEscrow(attached); werr != nil {
			log.Printf("ERROR: Failed to return attached fee after rejected creation: %v", werr)
		}
		return failure(marketapi.TypeCreateAuction, err)
	}

	// The surplus over the fee actually charged stays with the caller. The
	// charged fee comes back from CreateItem itself; re-reading the listing
	// fee here could race a concurrent fee change.
	surplus := attached.Sub(feeCharged)
	if surplus.Sign() > 0 {
		if werr := s.book.WithdrawEscrow(surplus); werr != nil {
			log.Printf("ERROR: Failed to return fee surplus after creation: %v", werr)
		}
	}

	log.Printf("INFO: Created auction %s for seller %s", id, req.Seller)
	return marketapi.MarketResponse{Type: responseType(marketapi.TypeCreateAuction), Success: true, ItemID: id}
}

func (s *MarketServer) handleSetListingFee(payload []byte) marketapi.MarketResponse {
	var req marketapi.SetListingFeeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return failure(marketapi.TypeSetListingFee, fmt.Errorf("malformed request: %w", err))
	}
	if err := s.market.SetListingFee(core.NormalizeAmount(req.NewFee), req.Caller); err != nil {
		return failure(marketapi.TypeSetListingFee, err)
	}
	return marketapi.MarketResponse{Type: responseType(marketapi.TypeSetListingFee), Success: true}
}

func (s *MarketServer) handleChangePrice(payload []byte) marketapi.MarketResponse {
	var req marketapi.ChangePriceRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return failure(marketapi.TypeChangePrice, fmt.Errorf("malformed request: %w", err))
	}
	if err := s.market.ChangePrice(req.ItemID, core.NormalizeAmount(req.NewPrice), req.Caller, time.Now()); err != nil {
		return failure(marketapi.TypeChangePrice, err)
	}
	return marketapi.MarketResponse{Type: responseType(marketapi.TypeChangePrice), Success: true, ItemID: req.ItemID}
}

func (s *MarketServer) handlePlaceBid(payload []byte) marketapi.MarketResponse {
	var req marketapi.PlaceBidRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return failure(marketapi.TypePlaceBid, fmt.Errorf("malformed request: %w", err))
	}

	// Bid funds enter escrow with the request and stay there until
	// settlement refunds or pays them out; a rejected bid is handed back
	// immediately.
	amount := core.NormalizeAmount(req.Amount)
	if err := s.book.DepositEscrow(amount); err != nil {
		return failure(marketapi.TypePlaceBid, err)
	}
	if err := s.market.PlaceBid(req.ItemID, req.Bidder, amount, time.Now()); err != nil {
		if werr := s.book.WithdrawEscrow(amount); werr != nil {
			log.Printf("ERROR: Failed to return escrowed amount after rejected bid: %v", werr)
		}
		return failure(marketapi.TypePlaceBid, err)
	}
	return marketapi.MarketResponse{Type: responseType(marketapi.TypePlaceBid), Success: true, ItemID: req.ItemID}
}

func (s *MarketServer) handleClaimPrize(payload []byte) marketapi.MarketResponse {
	var req marketapi.ClaimPrizeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return failure(marketapi.TypeClaimPrize, fmt.Errorf("malformed request: %w", err))
	}
	if err := s.market.ClaimPrize(context.Background(), req.ItemID, req.BidIndex, req.Caller, time.Now()); err != nil {
		return failure(marketapi.TypeClaimPrize, err)
	}
	log.Printf("INFO: Auction %s settled, new owner %s", req.ItemID, req.Caller)
	return marketapi.MarketResponse{Type: responseType(marketapi.TypeClaimPrize), Success: true, ItemID: req.ItemID}
}

func itemsResponse(reqType string, items []core.AuctionItem) marketapi.MarketResponse {
	return marketapi.MarketResponse{
		Type:    responseType(reqType),
		Success: true,
		Items:   marketapi.NewItemRecords(items),
	}
}

func failure(reqType string, err error) marketapi.MarketResponse {
	return marketapi.MarketResponse{
		Type:    responseType(reqType),
		Success: false,
		Message: err.Error(),
	}
}

func responseType(reqType string) string {
	return reqType + "_response"
}
