/* Copyright 2025 LogYourBody Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package netwatch

import (
	"context"
	"testing"
	"time"

	"github.com/logyourbody/logyourbody/pkg/assert"
	"github.com/pkg/errors"
)

func TestManualTransitions(t *testing.T) {
	m := NewManual(false)
	defer m.Close()

	var calls []bool
	unsubscribe := m.Subscribe(func(online bool) {
		calls = append(calls, online)
	})

	m.SetOnline(true)
	m.SetOnline(true) // no transition, no call
	m.SetOnline(false)

	assert.Equal(t, m.IsOnline(), false, "state mismatch")
	assert.DeepEqual(t, calls, []bool{true, false}, "subscribers should only see transitions")

	unsubscribe()
	m.SetOnline(true)
	assert.Equal(t, len(calls), 2, "unsubscribed callback should not be invoked")
}

func TestManualMultipleSubscribers(t *testing.T) {
	m := NewManual(false)
	defer m.Close()

	var a, b int
	m.Subscribe(func(online bool) { a++ })
	m.Subscribe(func(online bool) { b++ })

	m.SetOnline(true)

	assert.Equal(t, a, 1, "first subscriber call count mismatch")
	assert.Equal(t, b, 1, "second subscriber call count mismatch")
}

func TestProbe(t *testing.T) {
	healthy := make(chan bool, 16)
	var ok bool

	ping := func(ctx context.Context) error {
		select {
		case ok = <-healthy:
		default:
		}
		if ok {
			return nil
		}
		return errors.New("unreachable")
	}

	healthy <- true
	p := NewProbe(ping, 5*time.Millisecond)
	defer p.Close()

	assert.Equal(t, p.IsOnline(), true, "probe should be online after a successful ping")

	transitions := make(chan bool, 16)
	p.Subscribe(func(online bool) {
		transitions <- online
	})

	healthy <- false
	select {
	case got := <-transitions:
		assert.Equal(t, got, false, "probe should report going offline")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the offline transition")
	}

	healthy <- true
	select {
	case got := <-transitions:
		assert.Equal(t, got, true, "probe should report coming back online")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the online transition")
	}
}

func TestProbeCloseIdempotent(t *testing.T) {
	p := NewProbe(func(ctx context.Context) error { return nil }, time.Millisecond)

	p.Close()
	p.Close()
}
