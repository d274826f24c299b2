package main

import "github.com/WMahoney09/klauss/cmd"

func main() {
	cmd.Execute()
}
