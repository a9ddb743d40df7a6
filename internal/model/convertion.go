package model

import (
	"time"

	"github.com/scailotto/backend/internal/entity"
	"github.com/scailotto/backend/pkg/ethutil"
)

const DefaultTimeLayout string = time.RFC3339Nano

const (
	RoundStatusActive = "active"
	RoundStatusDrawn  = "drawn"
	RoundStatusClosed = "closed"
)

func ConvertRound(round *entity.Round) Round {
	if round == nil {
		return Round{}
	}

	status := RoundStatusClosed
	switch {
	case round.IsDrawn:
		status = RoundStatusDrawn
	case round.IsActive:
		status = RoundStatusActive
	}

	return Round{
		ID:              round.ID,
		RoundNumber:     round.RoundNumber,
		Network:         round.Network,
		Status:          status,
		StartTime:       round.StartTime.UTC().Format(DefaultTimeLayout),
		EndTime:         round.EndTime.UTC().Format(DefaultTimeLayout),
		PrizeAmount:     ethutil.FormatAmount(round.PrizeAmount),
		WinningTicketID: round.WinningTicketID.String,
		WinnerAddress:   round.WinnerAddress.String,
		CreatedAt:       round.CreatedAt.UTC().Format(DefaultTimeLayout),
	}
}

// ConvertTicket uses price for tickets which are not sold yet.
func ConvertTicket(ticket *entity.Ticket, price string) Ticket {
	if ticket == nil {
		return Ticket{}
	}

	t := Ticket{
		ID:               ticket.ID,
		RoundID:          ticket.RoundID,
		TicketIndex:      ticket.TicketIndex,
		TicketNumber:     ticket.TicketNumber,
		Price:            price,
		IsAvailable:      ticket.IsAvailable,
		Status:           string(ticket.Status),
		PurchaserAddress: ticket.PurchaserAddress.String,
		TransactionHash:  ticket.TransactionHash.String,
	}

	if !ticket.IsAvailable {
		t.Price = ethutil.FormatAmount(ticket.PurchasePrice)
	}

	if ticket.PurchasedAt.Valid {
		t.PurchasedAt = ticket.PurchasedAt.Time.UTC().Format(DefaultTimeLayout)
	}

	return t
}

func ConvertTransaction(tx *entity.Transaction) Transaction {
	if tx == nil {
		return Transaction{}
	}

	return Transaction{
		ID:              tx.ID,
		UserAddress:     tx.UserAddress,
		Type:            string(tx.Type),
		Amount:          ethutil.FormatAmount(tx.Amount),
		TicketID:        tx.TicketID.String,
		TransactionHash: tx.TransactionHash,
		Network:         tx.Network,
		Status:          string(tx.Status),
		CreatedAt:       tx.CreatedAt.UTC().Format(DefaultTimeLayout),
	}
}

func ConvertUser(user *entity.User) User {
	if user == nil {
		return User{}
	}

	u := User{
		Address:          user.Address,
		TotalSpent:       ethutil.FormatAmount(user.TotalSpent),
		TotalWon:         ethutil.FormatAmount(user.TotalWon),
		TicketsPurchased: user.TicketsPurchased,
		CreatedAt:        user.CreatedAt.UTC().Format(DefaultTimeLayout),
	}

	if user.LastActive.Valid {
		u.LastActive = user.LastActive.Time.UTC().Format(DefaultTimeLayout)
	}

	return u
}
