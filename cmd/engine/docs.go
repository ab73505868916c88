package main

//go:generate swag init -g cmd/engine/main.go -o docs

// @title           Lotus Trader Position Engine API
// @version         0.1.0
// @description     Position lifecycle, decision audit, and execution controls.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
