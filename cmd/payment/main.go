package main

import "github.com/tumbleweedd/eshop_saga/internal/app"

func main() {
	app.Main(app.RolePayment)
}
