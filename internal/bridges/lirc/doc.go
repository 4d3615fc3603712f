// Package lirc turns infrared remote buttons received from lircd into
// renderer actions.
//
// lircd reports each decoded button as a remote name, a button name and a
// repeat count. A lircrc file, in the format lirc's own client library
// reads, maps those to operation names for this program:
//
//	begin
//	    prog   = r2upnpav
//	    button = KEY_VOLUMEUP
//	    config = VolumeUp
//	    repeat = 1
//	end
//
// The lircd connection is read by go-lirc on a background goroutine. Every
// button press is pushed into a reactor inbox; on the reactor all queued
// presses are decoded, folded into one remote.Batch and applied with a
// volume step of 1.
//
// When the lircd connection ends the adapter stops the reactor: without its
// input source the process has nothing left to do.
package lirc
