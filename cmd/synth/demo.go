package main

import (
	"flag"

	"github.com/dudk/synth"
)

// demoSong is a short two track piece: an fm arpeggio lead over a triangle
// bass line.
const demoSong = "t112 l8 o4 /: e g < c e d c > b g :/2 < c2 ; " +
	"t112 l4 o2 v11 /: c g a e :/2 c2"

type demoCommand struct {
	driver string
	out    string
}

//Implement command interface
func (cmd *demoCommand) Name() string {
	return "demo"
}

func (cmd *demoCommand) Help() string {
	return "Play a short built-in song"
}

func (cmd *demoCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.driver, "driver", "portaudio", "audio driver: portaudio, oto or none")
	fs.StringVar(&cmd.out, "out", "", "wav file to record the performance into")
}

func (cmd *demoCommand) Run() error {
	return perform(demoSong, []string{"fm", "triangle"}, performance{
		rate:   int(synth.DefaultSampleRate),
		buffer: int(synth.DefaultBufferSize),
		driver: cmd.driver,
		out:    cmd.out,
		depth:  16,
	})
}
