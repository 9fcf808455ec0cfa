package domain

// ErrorResponse is the error body every API endpoint returns.
// @Description Standard error body returned by the API.
type ErrorResponse struct {
	Code     int    `json:"code" example:"409"`
	Category string `json:"category" example:"INSUFFICIENT_STOCK"`
	Message  string `json:"message" example:"insufficient stock for product 1: available 45, requested 50"`
}
