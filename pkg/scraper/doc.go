// Package scraper drives a page through a site profile's traversal
// strategy and hands every new image to a sink.
//
// Two strategies exist. SequentialPagination reads one primary image per
// page, clicks "next" and waits for the image to change; it stops when an
// image repeats. IncrementalScroll collects every listed image, clicks a
// load-more control when the site has one, and otherwise scrolls until
// the bottom of the document yields nothing new.
//
// A run is single threaded. Downloads happen behind the sink and never
// feed back into traversal. Every wait takes the run's context, so
// cancelling it ends the run with ReasonCancelled.
//
//	s, _ := scraper.New(scraper.Config{Sink: sink.NewPoolSink(pool), Reporter: rep})
//	res := s.Run(ctx, pg, resolver.Resolve(host))
//	fmt.Println(res.Reason, res.Emitted)
package scraper
