package main

import (
	"flag"
	"fmt"

	"github.com/dudk/synth/midi"
)

type devicesCommand struct {
}

//Implement command interface
func (cmd *devicesCommand) Name() string {
	return "devices"
}

func (cmd *devicesCommand) Help() string {
	return "Show the list of MIDI input devices"
}

func (cmd *devicesCommand) Register(fs *flag.FlagSet) {
}

func (cmd *devicesCommand) Run() error {
	devices, err := midi.Devices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No MIDI input devices found")
		return nil
	}
	def, err := midi.DefaultDevice()
	if err != nil {
		return err
	}
	fmt.Println("Available MIDI input devices:")
	for _, d := range devices {
		marker := ""
		if d.ID == def {
			marker = "\t(default)"
		}
		fmt.Printf("\t%d\t%s%s\n", d.ID, d.Name, marker)
	}
	return nil
}
