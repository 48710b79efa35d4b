package capture

import (
	"context"
	"fmt"
	"image"

	"github.com/jupitervolta/ds1054z/internal/imaging"
	"github.com/jupitervolta/ds1054z/internal/persist"
	"github.com/jupitervolta/ds1054z/internal/scope"
)

// ReadTable reads the given channels, or every displayed channel when
// channels is empty, plus the time axis when withTime is set.
// Run it inside device.Handle.Do so the reads form one sequence.
func ReadTable(ctx context.Context, dev scope.Device, channels []string, mode string, withTime bool) (persist.Table, error) {
	var table persist.Table

	if len(channels) == 0 {
		displayed, err := dev.DisplayedChannels(ctx)
		if err != nil {
			return table, fmt.Errorf("list displayed channels: %w", err)
		}
		channels = displayed
	}

	for _, ch := range channels {
		samples, err := dev.WaveformSamples(ctx, ch, mode)
		if err != nil {
			return table, fmt.Errorf("read %s: %w", ch, err)
		}
		table.Channels = append(table.Channels, persist.Series{Name: ch, Values: samples})
	}

	if withTime {
		times, err := dev.TimeAxis(ctx, mode)
		if err != nil {
			return table, fmt.Errorf("read time axis: %w", err)
		}
		table.Time = times
	}
	return table, nil
}

// RenderScreen grabs the display and runs it through the imaging pipeline.
func RenderScreen(ctx context.Context, dev scope.Device, opts imaging.Options) (image.Image, error) {
	data, err := dev.DisplayData(ctx)
	if err != nil {
		return nil, fmt.Errorf("read display: %w", err)
	}

	src, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	return imaging.Render(src, opts)
}
