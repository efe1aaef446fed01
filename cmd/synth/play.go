package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dudk/synth"
)

type playCommand struct {
	file   string
	out    string
	mp3    string
	driver string
	rate   int
	buffer int
	depth  int
	inst   stringList
}

//Implement command interface
func (cmd *playCommand) Name() string {
	return "play"
}

func (cmd *playCommand) Help() string {
	return "Play a Music Macro Language file"
}

func (cmd *playCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.file, "f", "", "mml file to play (required)")
	fs.StringVar(&cmd.out, "out", "", "wav file to record the performance into")
	fs.StringVar(&cmd.mp3, "mp3", "", "mp3 file to record the performance into")
	fs.StringVar(&cmd.driver, "driver", "portaudio", "audio driver: portaudio, oto or none")
	fs.IntVar(&cmd.rate, "rate", int(synth.DefaultSampleRate), "sample rate in Hz")
	fs.IntVar(&cmd.buffer, "buffer", int(synth.DefaultBufferSize), "buffer size in samples")
	fs.IntVar(&cmd.depth, "depth", 16, "wav bit depth, 16 or 32")
	fs.Var(&cmd.inst, "inst", "semicolon separated instrument names, one per track")
}

func (cmd *playCommand) Run() error {
	err := cmd.Validate()
	if err != nil {
		return err
	}
	song, err := os.ReadFile(cmd.file)
	if err != nil {
		return err
	}
	return perform(string(song), cmd.inst, performance{
		rate:   cmd.rate,
		buffer: cmd.buffer,
		driver: cmd.driver,
		out:    cmd.out,
		depth:  cmd.depth,
		mp3:    cmd.mp3,
	})
}

func (cmd *playCommand) Validate() error {
	var message string
	if cmd.file == "" {
		message = message + fmt.Sprintf("Missing -f required flag\n")
	}
	if message != "" {
		return fmt.Errorf(message)
	}
	return nil
}
