package main

import "os"

func helper() {
	os.Exit(1)
}

func main() {
	defer helper()

	os.Exit(1) // want "avoid using os.Exit in main.main"
}
