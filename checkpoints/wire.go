package checkpoints

import (
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Wire layout, proto3 field numbering:
//
//	Checkpoint: 1 project (string), 2 run_id (string), 3 epoch (varint),
//	            4 global_step (varint), 5 learning_rate (fixed64),
//	            6 saved_at unix nanos (varint), 7 weights (message, repeated)
//	WeightTensor: 1 name (string), 2 data (packed fixed64)
const (
	fieldProject      = 1
	fieldRunID        = 2
	fieldEpoch        = 3
	fieldGlobalStep   = 4
	fieldLearningRate = 5
	fieldSavedAt      = 6
	fieldWeights      = 7

	fieldTensorName = 1
	fieldTensorData = 2
)

func (c *Checkpoint) marshalWire() []byte {
	var buf []byte

	buf = protowire.AppendTag(buf, fieldProject, protowire.BytesType)
	buf = protowire.AppendString(buf, c.Project)
	buf = protowire.AppendTag(buf, fieldRunID, protowire.BytesType)
	buf = protowire.AppendString(buf, c.RunID)
	buf = protowire.AppendTag(buf, fieldEpoch, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(c.State.Epoch))
	buf = protowire.AppendTag(buf, fieldGlobalStep, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(c.State.GlobalStep))
	buf = protowire.AppendTag(buf, fieldLearningRate, protowire.Fixed64Type)
	buf = protowire.AppendFixed64(buf, math.Float64bits(c.State.LearningRate))
	buf = protowire.AppendTag(buf, fieldSavedAt, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(c.SavedAt.UnixNano()))

	for _, w := range c.Weights {
		var msg []byte
		msg = protowire.AppendTag(msg, fieldTensorName, protowire.BytesType)
		msg = protowire.AppendString(msg, w.Name)

		packed := make([]byte, 0, 8*len(w.Data))
		for _, v := range w.Data {
			packed = protowire.AppendFixed64(packed, math.Float64bits(v))
		}
		msg = protowire.AppendTag(msg, fieldTensorData, protowire.BytesType)
		msg = protowire.AppendBytes(msg, packed)

		buf = protowire.AppendTag(buf, fieldWeights, protowire.BytesType)
		buf = protowire.AppendBytes(buf, msg)
	}

	return buf
}

func unmarshalWire(data []byte) (*Checkpoint, error) {
	ckpt := &Checkpoint{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case fieldProject, fieldRunID:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			if num == fieldProject {
				ckpt.Project = v
			} else {
				ckpt.RunID = v
			}
		case fieldEpoch, fieldGlobalStep, fieldSavedAt:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			switch num {
			case fieldEpoch:
				ckpt.State.Epoch = int(v)
			case fieldGlobalStep:
				ckpt.State.GlobalStep = int(v)
			case fieldSavedAt:
				ckpt.SavedAt = time.Unix(0, int64(v))
			}
		case fieldLearningRate:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return nil, fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			ckpt.State.LearningRate = math.Float64frombits(v)
		case fieldWeights:
			msg, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			w, err := unmarshalTensor(msg)
			if err != nil {
				return nil, err
			}
			ckpt.Weights = append(ckpt.Weights, w)
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return ckpt, nil
}

func unmarshalTensor(msg []byte) (WeightTensor, error) {
	var w WeightTensor
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return w, fmt.Errorf("tensor tag: %w", protowire.ParseError(n))
		}
		msg = msg[n:]

		switch num {
		case fieldTensorName:
			v, n := protowire.ConsumeString(msg)
			if n < 0 {
				return w, fmt.Errorf("tensor name: %w", protowire.ParseError(n))
			}
			msg = msg[n:]
			w.Name = v
		case fieldTensorData:
			packed, n := protowire.ConsumeBytes(msg)
			if n < 0 {
				return w, fmt.Errorf("tensor data: %w", protowire.ParseError(n))
			}
			msg = msg[n:]
			if len(packed)%8 != 0 {
				return w, fmt.Errorf("tensor %q: packed data length %d not a multiple of 8", w.Name, len(packed))
			}
			w.Data = make([]float64, 0, len(packed)/8)
			for len(packed) > 0 {
				v, n := protowire.ConsumeFixed64(packed)
				if n < 0 {
					return w, fmt.Errorf("tensor %q: %w", w.Name, protowire.ParseError(n))
				}
				packed = packed[n:]
				w.Data = append(w.Data, math.Float64frombits(v))
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, msg)
			if n < 0 {
				return w, fmt.Errorf("tensor field %d: %w", num, protowire.ParseError(n))
			}
			msg = msg[n:]
		}
	}
	return w, nil
}
