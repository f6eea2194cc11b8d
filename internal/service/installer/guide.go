package installer

import "fmt"

// defaultGuideLocation is shown when no concrete directory is known yet.
const defaultGuideLocation = "the directory in which your extension files live, and select it."

// InstallGuide explains how to load an unpacked extension from path.
// An empty path yields the generic wording used in help output.
func InstallGuide(path string) string {
	if path == "" {
		path = defaultGuideLocation
	}

	return fmt.Sprintf(`
Install Guide:

  1. Visit chrome://extensions in your browser.
  2. Ensure that the Developer mode checkbox in the top right-hand corner is checked.
  3. Click Load unpacked extension… to pop up a file-selection dialog.
  4. Navigate to %s

  Alternatively, you can drag and drop the directory where your extension files
  live onto chrome://extensions in your browser to load it.
`, path)
}
