package metadata

import "time"

// exifTimeLayout is exiftool's date format: "2024:06:15 14:32:07".
const exifTimeLayout = "2006:01:02 15:04:05"

func parseExifTime(s string) (int64, error) {
	t, err := time.Parse(exifTimeLayout, s)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}
