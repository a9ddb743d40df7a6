package model

type GetUserRequest struct {
	Address string `uri:"address"`
}

type GetUserResponse User

type GetUserTicketsRequest struct {
	Address string `uri:"address"`
}

type GetUserTicketsResponse []Ticket

type GetUserTransactionsRequest struct {
	Address string `uri:"address"`
}

type GetUserTransactionsResponse []Transaction
