package main

import "github.com/dadosabertosanp/scraper/cmd"

func main() {
	cmd.Execute()
}
