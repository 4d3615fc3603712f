// Package remote defines the semantic remote-control operations and the
// batch that folds a burst of them into the fewest renderer actions.
//
// Every input (IR, CEC, MQTT) decodes its raw events into Operations, adds
// them to a Batch for the duration of one reactor wakeup, and applies the
// batch once to an Output:
//
//	var b remote.Batch
//	for each raw event {
//	    b.Add(op)
//	}
//	b.Apply(registry, step)
//
// A batch keeps only the direction of each axis. Five presses of volume up
// and two of volume down issue one AdjustVolume(+step); a mute pressed twice
// issues nothing.
package remote
