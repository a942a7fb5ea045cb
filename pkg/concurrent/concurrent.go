package concurrent

import (
	"golang.org/x/sync/errgroup"

	"github.com/tickforge/tickforge/pkg/sequence"
)

// Concurrent runs the action function for each element of the iterator in a
// separate goroutine and waits for all of them. A joined error of every failed
// action is returned.
func Concurrent[T any](i *sequence.Iterator[T], action func(T) error) error {
	var group errgroup.Group
	next, stop := i.Pull()
	defer stop()

	for {
		value, valid := next()
		if !valid {
			break
		}

		group.Go(func() error {
			return action(value)
		})
	}

	return group.Wait()
}

// Limited behaves like Concurrent but caps the number of in-flight goroutines.
func Limited[T any](i *sequence.Iterator[T], limit int, action func(T) error) error {
	var group errgroup.Group
	group.SetLimit(limit)
	next, stop := i.Pull()
	defer stop()

	for {
		value, valid := next()
		if !valid {
			break
		}

		group.Go(func() error {
			return action(value)
		})
	}

	return group.Wait()
}
