// Package audio implements a real-time loopback of the audio captured from a
// USB capture device (UVC/UAC) to the best playback device available.
//
// The OS audio service is abstracted behind audioContext. Builds with cgo use
// miniaudio (through malgo); builds without cgo or with the noaudio tag use a
// null backend that never produces data.
package audio
