package queue

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"slices"
	"sort"
	"time"
)

// Song is a queue entry as stored in the room state. Identity for queue
// operations is Id, not VideoId: the same video may be queued twice.
type Song struct {
	Id               string  `json:"id"`
	VideoId          string  `json:"video_id"`
	Title            string  `json:"title"`
	Thumbnail        string  `json:"thumbnail"`
	ChannelTitle     string  `json:"channel_title"`
	AddedBy          string  `json:"added_by"`
	AddedByName      string  `json:"added_by_name"`
	AddedByAnonymous bool    `json:"added_by_anonymous,omitempty"`
	Duration         float64 `json:"duration,omitempty"`
}

type Encoding int

const (
	EncodingArray Encoding = iota
	EncodingKeyed
)

// Queue is the canonical ordered sequence of songs. The store may hold it
// as a json array or as a keyed map (push-appended entries); the encoding
// it was read with is kept so that single-entry mutations can write it back
// in the same representation. Keys is parallel to Songs and only populated
// for the keyed encoding.
type Queue struct {
	Songs    []Song
	Keys     []string
	Encoding Encoding
}

func (q Queue) Len() int { return len(q.Songs) }

// Ids returns the song ids in queue order.
func (q Queue) Ids() []string {
	ids := make([]string, len(q.Songs))
	for i, s := range q.Songs {
		ids[i] = s.Id
	}

	return ids
}

// Decode normalizes a stored queue document. Both encodings are accepted;
// keyed entries are ordered by key, which push keys make time-sorted. A
// missing or null document decodes to an empty array queue.
func Decode(raw []byte) (Queue, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Queue{Encoding: EncodingArray}, nil
	}

	var songs []Song
	if err := json.Unmarshal(raw, &songs); err == nil {
		return Queue{Songs: songs, Encoding: EncodingArray}, nil
	}

	var keyed map[string]Song
	if err := json.Unmarshal(raw, &keyed); err != nil {
		return Queue{}, fmt.Errorf("failed to decode queue: %w", err)
	}

	keys := make([]string, 0, len(keyed))
	for k := range keyed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := Queue{
		Songs:    make([]Song, 0, len(keys)),
		Keys:     keys,
		Encoding: EncodingKeyed,
	}
	for _, k := range keys {
		q.Songs = append(q.Songs, keyed[k])
	}

	return q, nil
}

// Encode serializes the queue in its current representation.
func (q Queue) Encode() ([]byte, error) {
	if q.Encoding == EncodingKeyed {
		keyed := make(map[string]Song, len(q.Songs))
		for i, s := range q.Songs {
			keyed[q.Keys[i]] = s
		}

		return json.Marshal(keyed)
	}

	if q.Songs == nil {
		return json.Marshal([]Song{})
	}

	return json.Marshal(q.Songs)
}

// Append adds a song at the tail, preserving the representation. key is
// only used for the keyed encoding.
func (q Queue) Append(song Song, key string) Queue {
	out := q.clone()
	out.Songs = append(out.Songs, song)
	if out.Encoding == EncodingKeyed {
		out.Keys = append(out.Keys, key)
	}

	return out
}

// PopHead removes the head entry, preserving the representation: an array
// stays an array with the head removed, a keyed map loses the head key.
func (q Queue) PopHead() (Song, Queue, bool) {
	if len(q.Songs) == 0 {
		return Song{}, q, false
	}

	head := q.Songs[0]
	out := Queue{
		Songs:    slices.Clone(q.Songs[1:]),
		Encoding: q.Encoding,
	}
	if q.Encoding == EncodingKeyed {
		out.Keys = slices.Clone(q.Keys[1:])
	}

	return head, out, true
}

// RemoveById removes the first entry with the given song id, preserving the
// representation. The second return is false when the id is absent, in which
// case the queue is returned unchanged.
func (q Queue) RemoveById(id string) (Queue, bool) {
	idx := slices.IndexFunc(q.Songs, func(s Song) bool { return s.Id == id })
	if idx == -1 {
		return q, false
	}

	out := Queue{
		Songs:    append(slices.Clone(q.Songs[:idx]), q.Songs[idx+1:]...),
		Encoding: q.Encoding,
	}
	if q.Encoding == EncodingKeyed {
		out.Keys = append(slices.Clone(q.Keys[:idx]), q.Keys[idx+1:]...)
	}

	return out, true
}

// Reorder replaces the sequence with a caller-supplied permutation and
// always writes back the array representation, as reordering invalidates
// push keys.
func Reorder(songs []Song) Queue {
	return Queue{Songs: slices.Clone(songs), Encoding: EncodingArray}
}

// Shuffle returns a uniformly random permutation of the queue (Fisher-Yates)
// in the array representation.
func (q Queue) Shuffle(r *rand.Rand) Queue {
	songs := slices.Clone(q.Songs)
	for i := len(songs) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		songs[i], songs[j] = songs[j], songs[i]
	}

	return Queue{Songs: songs, Encoding: EncodingArray}
}

// PushKey returns a lexically sortable key for keyed-map appends: zero
// padded unix milliseconds plus a random suffix to break ties. Key order is
// insertion order, which keeps the keyed decoding stable.
func PushKey(now time.Time, r *rand.Rand) string {
	return fmt.Sprintf("%013d%04d", now.UnixMilli(), r.Intn(10000))
}

func (q Queue) clone() Queue {
	return Queue{
		Songs:    slices.Clone(q.Songs),
		Keys:     slices.Clone(q.Keys),
		Encoding: q.Encoding,
	}
}
