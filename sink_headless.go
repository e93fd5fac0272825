//go:build headless

// sink_headless.go - Headless builds route the device backend to the null sink

package main

func newOtoSink(sampleRate int, src BlockSource) (AudioSink, error) {
	return newHeadlessSink(sampleRate, src), nil
}
