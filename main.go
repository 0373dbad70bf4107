/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package main

import "github.com/fulingwei1/non-standard-automation-pms-sub015/cmd"

func main() {
	cmd.Execute()
}
