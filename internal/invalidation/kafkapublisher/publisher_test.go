package kafkapublisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/mohammed-shakir/vtile-mapcss/internal/invalidation"
)

func validEvent() invalidation.Event {
	return invalidation.Event{
		Version: 1, Op: "update", Layer: "roads",
		TS:    time.Date(2025, 10, 26, 12, 0, 0, 0, time.UTC),
		Tiles: []invalidation.TileRef{{Z: 5, X: 17, Y: 9}},
	}
}

func TestPublish_SendsJSON(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev invalidation.Event
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.Op != "update" || len(ev.Tiles) != 1 || ev.Tiles[0].X != 17 {
			return fmt.Errorf("unexpected event %+v", ev)
		}
		return nil
	})
	p := NewWithProducer(sp, "tile-invalidation", nil)

	if _, _, err := p.Publish(context.Background(), "roads/1", validEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestPublish_RejectsInvalidEvent(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	p := NewWithProducer(sp, "tile-invalidation", nil)

	ev := validEvent()
	ev.Op = "merge"
	if _, _, err := p.Publish(context.Background(), "", ev); !errors.Is(err, invalidation.ErrInvalidEvent) {
		t.Fatalf("err=%v want ErrInvalidEvent", err)
	}
	_ = p.Close()
}

func TestPublish_WrapsSendError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	p := NewWithProducer(sp, "tile-invalidation", nil)

	if _, _, err := p.Publish(context.Background(), "", validEvent()); !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("err=%v want ErrOutOfBrokers", err)
	}
	_ = p.Close()
}
