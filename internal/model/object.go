package model

const (
	OwnershipAvailable     = "available"
	OwnershipOwnedByCaller = "owned-by-caller"
	OwnershipSoldToOther   = "sold-to-other"
)

type Round struct {
	ID              string `json:"id"`
	RoundNumber     int64  `json:"roundNumber"`
	Network         string `json:"network"`
	Status          string `json:"status"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
	PrizeAmount     string `json:"prizeAmount"`
	WinningTicketID string `json:"winningTicketId,omitempty"`
	WinnerAddress   string `json:"winnerAddress,omitempty"`
	CreatedAt       string `json:"createdAt"`
}

type Ticket struct {
	ID               string `json:"id"`
	RoundID          string `json:"roundId"`
	TicketIndex      int    `json:"ticketIndex"`
	TicketNumber     string `json:"ticketNumber"`
	Price            string `json:"price"`
	IsAvailable      bool   `json:"isAvailable"`
	Status           string `json:"status"`
	Ownership        string `json:"ownership,omitempty"`
	PurchaserAddress string `json:"purchaserAddress,omitempty"`
	TransactionHash  string `json:"transactionHash,omitempty"`
	PurchasedAt      string `json:"purchasedAt,omitempty"`
}

type Stats struct {
	TotalTickets     int    `json:"totalTickets"`
	SoldTickets      int    `json:"soldTickets"`
	AvailableTickets int    `json:"availableTickets"`
	PrizePool        string `json:"prizePool"`
}

type Transaction struct {
	ID              string `json:"id"`
	UserAddress     string `json:"userAddress"`
	Type            string `json:"type"`
	Amount          string `json:"amount"`
	TicketID        string `json:"ticketId,omitempty"`
	TransactionHash string `json:"transactionHash"`
	Network         string `json:"network"`
	Status          string `json:"status"`
	CreatedAt       string `json:"createdAt"`
}

type User struct {
	Address          string `json:"address"`
	TotalSpent       string `json:"totalSpent"`
	TotalWon         string `json:"totalWon"`
	TicketsPurchased int    `json:"ticketsPurchased"`
	LastActive       string `json:"lastActive,omitempty"`
	CreatedAt        string `json:"createdAt"`
}
