package gpio

import (
	"fmt"

	gpiod "github.com/warthog618/go-gpiocdev"
)

// CdevChip drives lines through the Linux GPIO character device.
type CdevChip struct {
	chip *gpiod.Chip
}

func OpenCdev(name string) (*CdevChip, error) {
	chip, err := gpiod.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open chip %s: %w", name, err)
	}
	return &CdevChip{chip: chip}, nil
}

func (c *CdevChip) RequestOutput(offset int, initialHigh bool) (Output, error) {
	initial := 0
	if initialHigh {
		initial = 1
	}
	line, err := c.chip.RequestLine(offset, gpiod.AsOutput(initial))
	if err != nil {
		return nil, fmt.Errorf("request output line %d: %w", offset, err)
	}
	return &cdevOutput{line: line}, nil
}

func (c *CdevChip) RequestInput(offset int, pullUp bool) (Input, error) {
	opts := []gpiod.LineReqOption{gpiod.AsInput}
	if pullUp {
		opts = append(opts, gpiod.WithPullUp)
	}
	line, err := c.chip.RequestLine(offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("request input line %d: %w", offset, err)
	}
	return &cdevInput{line: line}, nil
}

func (c *CdevChip) Close() error {
	return c.chip.Close()
}

type cdevOutput struct {
	line *gpiod.Line
}

func (o *cdevOutput) Set(high bool) error {
	v := 0
	if high {
		v = 1
	}
	return o.line.SetValue(v)
}

func (o *cdevOutput) Close() error { return o.line.Close() }

type cdevInput struct {
	line *gpiod.Line
}

func (i *cdevInput) Value() (bool, error) {
	v, err := i.line.Value()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (i *cdevInput) Close() error { return i.line.Close() }
