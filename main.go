package main

import "github.com/edgeflare/eelytics/cmd/eelytics"

func main() {
	eelytics.Main()
}
