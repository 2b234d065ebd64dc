package main

import (
	"context"
	"fmt"
)

// snapshot takes the analytics snapshots the API scheduler otherwise takes periodically.
func (cli *commandLine) snapshot() error {
	if err := cli.teamSvc.TakeAllSnapshots(context.Background()); err != nil {
		return err
	}
	fmt.Println("analytics snapshots taken")
	return nil
}
