package banner

import (
	"davhammer/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	ascii := `
       __            __
  ____/ /___ __   __/ /_  ____ _____ ___  ____ ___  ___  _____
 / __  / __ '/ | / / __ \/ __ '/ __ '__ \/ __ '__ \/ _ \/ ___/
/ /_/ / /_/ /| |/ / / / / /_/ / / / / / / / / / / /  __/ /
\__,_/\__,_/ |___/_/ /_/\__,_/_/ /_/ /_/_/ /_/ /_/\___/_/     `

	return "\n" + style.Render(ascii) + "\n"
}
