package bus

import "testing"

func BenchmarkEmitSingleListener(b *testing.B) {
	eb := New(nil)
	eb.On("bench", func(Event) error { return nil })

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		eb.Emit(Event{Type: "bench"})
	}
}

func BenchmarkEmitFanOut(b *testing.B) {
	eb := New(nil)
	for i := 0; i < 16; i++ {
		eb.On("bench", func(Event) error { return nil })
	}
	eb.OnAll(func(Event) error { return nil })

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		eb.Emit(Event{Type: "bench"})
	}
}
