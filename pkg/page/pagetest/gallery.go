package pagetest

// Slideshow wires f as a one-image-per-page gallery. The image matched by
// imageSel starts at urls[0]; each click on nextSel shows the following
// URL and wraps back to the first after the last.
func Slideshow(f *Fake, imageSel, nextSel string, urls []string) {
	idx := 0
	f.SetImages(imageSel, ReadyImage(urls[0]))
	f.SetCount(nextSel, 1)
	f.OnClick(nextSel, func(f *Fake) {
		idx = (idx + 1) % len(urls)
		f.SetImages(imageSel, ReadyImage(urls[idx]))
	})
}
