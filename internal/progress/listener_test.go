package progress

import (
	"strconv"
	"sync"
	"testing"

	"github.com/smysle/anitrack-go/internal/database/models"
)

func TestSubscribe_ExactlyOncePerMutation(t *testing.T) {
	s, _ := newTestStore(t)

	var got []models.Collection
	s.Subscribe(func(c models.Collection) { got = append(got, c) })

	if err := s.Add("1", entry("A", intp(12), models.StatusWatching)); err != nil {
		t.Fatal(err)
	}
	// Add 返回时回调已执行
	if len(got) != 1 {
		t.Fatalf("Add() 后通知次数 = %d, want 1", len(got))
	}
	if e, ok := got[0]["1"]; !ok || e.Title != "A" {
		t.Errorf("通知内容 = %+v, 应包含新记录", got[0])
	}

	s.IncrementEpisode("1")
	title := "B"
	s.Update("1", models.ProgressPatch{Title: &title})
	s.Remove("1")
	if len(got) != 4 {
		t.Errorf("四次修改后通知次数 = %d, want 4", len(got))
	}
	if len(got[3]) != 0 {
		t.Errorf("删除后的通知内容 = %+v, want 空", got[3])
	}
}

func TestSubscribe_NoNotifyOnFailure(t *testing.T) {
	s, _ := newTestStore(t)

	calls := 0
	s.Subscribe(func(models.Collection) { calls++ })

	s.Remove("missing")
	s.Update("missing", models.ProgressPatch{})
	s.Add("", entry("A", nil, models.StatusWatching))

	if calls != 0 {
		t.Errorf("失败的修改不应通知，calls = %d", calls)
	}
}

func TestSubscribe_MultipleAndUnsubscribe(t *testing.T) {
	s, _ := newTestStore(t)

	var a, b int
	unsubA := s.Subscribe(func(models.Collection) { a++ })
	s.Subscribe(func(models.Collection) { b++ })

	s.Add("1", entry("A", nil, models.StatusWatching))
	unsubA()
	unsubA()
	s.Add("2", entry("B", nil, models.StatusWatching))

	if a != 1 || b != 2 {
		t.Errorf("a = %d, b = %d, want 1, 2", a, b)
	}
}

func TestSubscribe_UnsubscribeInsideListener(t *testing.T) {
	s, _ := newTestStore(t)

	calls := 0
	var unsub func()
	unsub = s.Subscribe(func(models.Collection) {
		calls++
		unsub()
		unsub()
	})

	s.Add("1", entry("A", nil, models.StatusWatching))
	s.Add("2", entry("B", nil, models.StatusWatching))

	if calls != 1 {
		t.Errorf("回调内取消订阅后 calls = %d, want 1", calls)
	}
}

func TestSubscribe_ListenerCanReadStore(t *testing.T) {
	s, _ := newTestStore(t)

	var seen int
	s.Subscribe(func(models.Collection) {
		seen = len(s.GetAll())
	})

	s.Add("1", entry("A", nil, models.StatusWatching))
	if seen != 1 {
		t.Errorf("回调中读取到 %d 条记录, want 1", seen)
	}
}

func TestSubscribe_SnapshotIsCopy(t *testing.T) {
	s, _ := newTestStore(t)

	s.Subscribe(func(c models.Collection) {
		delete(c, "1")
	})
	s.Add("1", entry("A", nil, models.StatusWatching))

	if _, ok := s.Get("1"); !ok {
		t.Error("修改通知内容不应影响内部状态")
	}
}

func TestSubscribe_Nil(t *testing.T) {
	s, _ := newTestStore(t)

	unsub := s.Subscribe(nil)
	unsub()
	if err := s.Add("1", entry("A", nil, models.StatusWatching)); err != nil {
		t.Errorf("Add() error = %v", err)
	}
}

func TestSubscribe_OrderMatchesMutations(t *testing.T) {
	s, _ := newTestStore(t)

	// 回调之间已串行，无需额外加锁
	var sizes []int
	s.Subscribe(func(c models.Collection) { sizes = append(sizes, len(c)) })

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Add(strconv.Itoa(i), entry("A", nil, models.StatusWatching))
		}(i)
	}
	wg.Wait()

	if len(sizes) != n {
		t.Fatalf("通知次数 = %d, want %d", len(sizes), n)
	}
	for i, size := range sizes {
		if size != i+1 {
			t.Fatalf("第 %d 次通知记录数 = %d, want %d", i+1, size, i+1)
		}
	}
}
