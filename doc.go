// Package motioncore is the motion controller of a PLEN2 compatible
// humanoid robot.
//
// It drives 24 servo joints through a multiplexed PWM board, stores motions
// in an EEPROM, plays them back with linear interpolation and accepts the
// PLEN2 serial command protocol.
//
// # Installation
//
//	go install github.com/gwillem/motioncore/cmd/motioncore@latest
//
// # Usage
//
// Write a configuration file and adjust the pins and ports:
//
//	motioncore init
//
// Install motions and start the controller:
//
//	motioncore install wave.json
//	motioncore run --port /dev/ttyACM0 --monitor
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/motioncore: CLI with run, install, dump, calibrate and ports commands
//   - pkg/joint: Joint calibration, angle to pulse mapping and the PWM multiplexer
//   - pkg/storage: EEPROM slot store and its file backed emulation
//   - pkg/motion: Motion records, their binary layout and JSON form
//   - pkg/playback: Playback state machine
//   - pkg/interpreter: Motion queue
//   - pkg/protocol: Serial command parser and argument codecs
//   - pkg/firmware: Main loop wiring the parser to playback and the queue
//   - pkg/hw: GPIO, recorder and bus servo outputs
//   - pkg/config: Runtime configuration file
package motioncore
