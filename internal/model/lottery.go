package model

type GetCurrentRoundRequest struct {
	Network string `uri:"network"`
	Address string `form:"address"`
}

type GetCurrentRoundResponse struct {
	Round   Round    `json:"round"`
	Tickets []Ticket `json:"tickets"`
	Stats   Stats    `json:"stats"`
}

type GetPurchasedTicketsRequest struct {
	Network string `uri:"network"`
	Address string `form:"address"`
}

type GetPurchasedTicketsResponse struct {
	Count   int      `json:"count"`
	Tickets []Ticket `json:"tickets"`
}

type GetRoundTicketsRequest struct {
	Network string `uri:"network"`
	Address string `form:"address"`
}

type GetRoundTicketsResponse []Ticket

type GetHistoryRequest struct {
	Network string `uri:"network"`
	Limit   int    `form:"limit"`
}

type GetHistoryResponse []Round

type EstimateFeeRequest struct {
	Network  string `uri:"network"`
	TicketID int    `uri:"ticket"`
	Address  string `form:"address"`
}

type EstimateFeeResponse struct {
	Network  string `json:"network"`
	TicketID int    `json:"ticketId"`
	Fee      string `json:"fee"`
}

type PurchaseTicketRequest struct {
	TicketID        int    `json:"ticketId"`
	UserAddress     string `json:"userAddress"`
	TransactionHash string `json:"transactionHash"`
	Network         string `json:"network"`
}

type PurchaseTicketResponse struct {
	Success         bool   `json:"success"`
	Status          string `json:"status"`
	Ticket          Ticket `json:"ticket"`
	TransactionHash string `json:"transactionHash"`
	Message         string `json:"message"`
}
