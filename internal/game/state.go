package game

// GameState живая коллекция сущностей и очередь новых объектов.
// Порядок вставки важен только для перебора пар при столкновениях.
// Новые объекты никогда не попадают в entities напрямую: сначала в
// staged, затем в drain между зачисткой и фазой столкновений.
type GameState struct {
	entities []Entity
	staged   []Entity
}

// Queue ставит сущность в очередь на вставку.
func (s *GameState) Queue(e Entity) {
	s.staged = append(s.staged, e)
}

// Entities живые сущности. Срез принадлежит состоянию.
func (s *GameState) Entities() []Entity { return s.entities }

// Len число живых сущностей
func (s *GameState) Len() int { return len(s.entities) }

// Pending число сущностей, ожидающих вставки
func (s *GameState) Pending() int { return len(s.staged) }

func (s *GameState) update(tick *Tick) {
	for _, e := range s.entities {
		e.Update(tick)
	}
}

// sweep удаляет сущности с ShouldDestroy() и возвращает их количество.
func (s *GameState) sweep() int {
	kept := s.entities[:0]
	for _, e := range s.entities {
		if !e.ShouldDestroy() {
			kept = append(kept, e)
		}
	}
	removed := len(s.entities) - len(kept)
	for i := len(kept); i < len(s.entities); i++ {
		s.entities[i] = nil
	}
	s.entities = kept
	return removed
}

// drain переносит очередь в живую коллекцию.
func (s *GameState) drain() int {
	n := len(s.staged)
	s.entities = append(s.entities, s.staged...)
	for i := range s.staged {
		s.staged[i] = nil
	}
	s.staged = s.staged[:0]
	return n
}

// Remove убирает сущность и из живой коллекции, и из очереди.
func (s *GameState) Remove(e Entity) bool {
	removed := false
	for i, cur := range s.entities {
		if cur == e {
			s.entities = append(s.entities[:i], s.entities[i+1:]...)
			removed = true
			break
		}
	}
	for i, cur := range s.staged {
		if cur == e {
			s.staged = append(s.staged[:i], s.staged[i+1:]...)
			removed = true
			break
		}
	}
	return removed
}
