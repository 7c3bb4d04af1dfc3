// Package rlhf records explicit feedback and periodically folds it into arm
// statistics and per-query retrieval preferences.
package rlhf

import (
	"fmt"
	"math"
	"time"
)

type Signal string

const (
	ThumbsUp    Signal = "thumbs_up"
	ThumbsDown  Signal = "thumbs_down"
	CAApproved  Signal = "ca_approved"
	CARejected  Signal = "ca_rejected"
	CACorrected Signal = "ca_corrected"
)

const (
	DefaultGamma = 0.9
	week         = 7 * 24 * time.Hour
)

var baseRewards = map[Signal]float64{
	ThumbsUp:    1.0,
	ThumbsDown:  -0.5,
	CAApproved:  1.5,
	CARejected:  -1.0,
	CACorrected: 1.5,
}

func ParseSignal(s string) (Signal, error) {
	sig := Signal(s)
	if _, ok := baseRewards[sig]; !ok {
		return "", fmt.Errorf("%q is not a valid signal", s)
	}
	return sig, nil
}

func (s Signal) Reward() float64 { return baseRewards[s] }

// Discount scales base by gamma^(weeks-1), counting anything younger than a
// week as one week.
func Discount(base float64, age time.Duration, gamma float64) float64 {
	weeks := math.Max(1, float64(max(age, 0))/float64(week))
	return base * math.Pow(gamma, weeks-1)
}
