package models

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	ZipCode string `json:"zipCode"`
}

type PaymentInfo struct {
	CardType         string `json:"cardType"`
	CardHolderName   string `json:"cardHolderName"`
	CardNumberMasked string `json:"cardNumberMasked"`
	CardExpiration   string `json:"cardExpiration"`
}
